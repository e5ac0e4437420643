package translate

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages commonly requested by voice, in case x/text lacks display
// names for them.
var extraLanguages = []language.Tag{
	language.MustParse("hi"),
	language.MustParse("ta"), language.MustParse("te"), language.MustParse("kn"),
	language.MustParse("ml"), language.MustParse("mr"), language.MustParse("gu"),
	language.MustParse("pa"), language.MustParse("bn"), language.MustParse("ur"),
	language.MustParse("or"), language.MustParse("as"), language.MustParse("ne"),
	language.MustParse("si"), language.MustParse("sw"), language.MustParse("yo"),
}

var (
	namesOnce sync.Once
	names     map[string]language.Tag
)

func buildNames() {
	names = make(map[string]language.Tag)
	english := display.English.Languages()

	add := func(tag language.Tag) {
		base, _ := tag.Base()
		t := language.Make(base.String())
		if n := english.Name(t); n != "" {
			names[strings.ToLower(n)] = t
		}
		if n := display.Self.Name(t); n != "" {
			names[strings.ToLower(n)] = t
		}
	}

	for _, tag := range display.Supported.Tags() {
		add(tag)
	}
	for _, tag := range extraLanguages {
		add(tag)
	}
}

// ResolveLanguage converts a spoken language name ("Hindi", "french") or a
// code ("hi", "pt-BR") into a language tag.
func ResolveLanguage(name string) (language.Tag, error) {
	n := strings.ToLower(strings.Trim(strings.TrimSpace(name), ".!?"))
	if n == "" {
		return language.Und, ErrNoLanguage
	}

	namesOnce.Do(buildNames)
	if tag, ok := names[n]; ok {
		return tag, nil
	}

	if len(n) <= 8 && !strings.Contains(n, " ") {
		if tag, err := language.Parse(n); err == nil {
			return tag, nil
		}
	}
	return language.Und, ErrUnknownLanguage
}

// LanguageName returns the English name of tag, e.g. "Hindi".
func LanguageName(tag language.Tag) string {
	return display.English.Languages().Name(tag)
}
