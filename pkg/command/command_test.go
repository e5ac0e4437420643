package command

import (
	"testing"
	"unicode/utf8"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		lang  string
		query string
	}{
		{"Detect object", KindObject, "", ""},
		{"what OBJECT is this", KindObject, "", ""},
		{"detect currency", KindCurrency, "", ""},
		{"Translate to Hindi", KindTranslate, "Hindi", ""},
		{"translate this to french.", KindTranslate, "french", ""},
		{"please translate from english to Spanish", KindTranslate, "Spanish", ""},
		{"translate tomato to Tamil", KindTranslate, "Tamil", ""},
		{"translate", KindTranslate, "", ""},
		{"translate tomorrow", KindTranslate, "", ""},
		{"Where am I", KindLocation, "", ""},
		{"show my location", KindLocation, "", ""},
		{"search for the weather in Delhi", KindSearch, "", "the weather in Delhi"},
		{"look up Rupee history", KindSearch, "", "Rupee history"},
		{"search", KindSearch, "", ""},
		{"sing a song", KindUnknown, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := Parse(tt.input)
			if cmd.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", cmd.Kind, tt.kind)
			}
			if cmd.TargetLanguage != tt.lang {
				t.Errorf("TargetLanguage = %q, want %q", cmd.TargetLanguage, tt.lang)
			}
			if cmd.Query != tt.query {
				t.Errorf("Query = %q, want %q", cmd.Query, tt.query)
			}
			if cmd.Raw == "" {
				t.Error("Raw should be preserved")
			}
		})
	}
}

func TestParseSearchNonASCII(t *testing.T) {
	tests := []struct {
		input string
		query string
	}{
		{"ȺȺȺȺȺȺȺȺȺȺ search", ""},
		{"İİİİİİİİ search", ""},
		{"İstanbul look up for weather", "weather"},
		{"ȺȺȺ search for Ⱥpple prices", "Ⱥpple prices"},
		{"SEARCH FOR Ünïcode café", "Ünïcode café"},
		{"बताओ search दिल्ली मौसम", "दिल्ली मौसम"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := Parse(tt.input)
			if cmd.Kind != KindSearch {
				t.Fatalf("Kind = %q, want %q", cmd.Kind, KindSearch)
			}
			if cmd.Query != tt.query {
				t.Errorf("Query = %q, want %q", cmd.Query, tt.query)
			}
			if !utf8.ValidString(cmd.Query) {
				t.Errorf("Query %q is not valid UTF-8", cmd.Query)
			}
		})
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	// "object" outranks every later keyword.
	if got := Parse("translate the object location").Kind; got != KindObject {
		t.Errorf("Kind = %q, want object", got)
	}
	if got := Parse("currency location").Kind; got != KindCurrency {
		t.Errorf("Kind = %q, want currency", got)
	}
	if got := Parse("translate my location to hindi").Kind; got != KindTranslate {
		t.Errorf("Kind = %q, want translate", got)
	}
	if got := Parse("search where am i").Kind; got != KindLocation {
		t.Errorf("Kind = %q, want location", got)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		if cmd := Parse(in); !cmd.IsEmpty() {
			t.Errorf("Parse(%q) = %+v, want empty", in, cmd)
		}
	}
}

func TestKindMetadata(t *testing.T) {
	if KindObject.Prompt() != "Describe all visible objects." {
		t.Errorf("object prompt = %q", KindObject.Prompt())
	}
	if KindCurrency.Prompt() != "What currency and denomination is this?" {
		t.Errorf("currency prompt = %q", KindCurrency.Prompt())
	}
	if KindLocation.Prompt() != "" {
		t.Error("location has no vision prompt")
	}
	if KindObject.Hint() != "Click the button after showing the object" {
		t.Errorf("object hint = %q", KindObject.Hint())
	}
	if KindCurrency.Hint() != "Show currency clearly before capturing" {
		t.Errorf("currency hint = %q", KindCurrency.Hint())
	}
	if !KindObject.NeedsFrame() || !KindCurrency.NeedsFrame() || KindTranslate.NeedsFrame() {
		t.Error("NeedsFrame mismatch")
	}
}

func TestPrompts(t *testing.T) {
	if got := TranslatePrompt("hello", "Hindi"); got != "Translate this to Hindi: hello" {
		t.Errorf("TranslatePrompt = %q", got)
	}
	info := "IP: 1.2.3.4, City: Pune, Region: Maharashtra, Country: India"
	if got := LocationPrompt(info); got != "Give a friendly description of this location: "+info {
		t.Errorf("LocationPrompt = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind(" Currency ") != KindCurrency {
		t.Error("expected currency")
	}
	if ParseKind("dance") != KindUnknown {
		t.Error("expected unknown")
	}
}

func TestExamples(t *testing.T) {
	ex := Examples()
	if len(ex) < 4 || ex[0] != "Detect object" || ex[2] != "Translate to Hindi" {
		t.Errorf("unexpected examples %v", ex)
	}
	for _, e := range ex {
		if Parse(e).Kind == KindUnknown {
			t.Errorf("example %q is not a recognised command", e)
		}
	}
}
