// Package command turns free-form voice or typed input into a dispatchable
// command by keyword matching.
//
// Matching is case-insensitive and first-match-wins, in this order:
// object, currency, translate, location, search. Anything else is Unknown.
package command

import (
	"strings"
)

// Kind identifies what a command asks for.
type Kind string

const (
	KindObject    Kind = "object"
	KindCurrency  Kind = "currency"
	KindTranslate Kind = "translate"
	KindLocation  Kind = "location"
	KindSearch    Kind = "search"
	KindUnknown   Kind = "unknown"
)

// Command is a parsed user request.
type Command struct {
	Raw  string `json:"raw"`
	Kind Kind   `json:"kind"`

	// TargetLanguage is set for translate commands when a language follows "to".
	TargetLanguage string `json:"target_language,omitempty"`

	// Query is set for search commands.
	Query string `json:"query,omitempty"`
}

// User-facing messages.
const (
	MsgNotRecognized   = "Command not recognized."
	MsgMissingLanguage = "Please say: Translate to [language]"
	MsgNoMicrophone    = "🎤 Microphone not available. Please type your command below."
	MsgDidNotCatch     = "Sorry, I didn't catch that."
	MsgNoFrame         = "No camera frame available yet."
	MsgMissingQuery    = "Please say: Search for [topic]"
)

// Parse classifies text. Empty or whitespace-only text yields a zero Command
// with Kind "" so callers can skip it.
func Parse(text string) Command {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Command{}
	}
	lower := strings.ToLower(raw)
	cmd := Command{Raw: raw}

	switch {
	case strings.Contains(lower, "object"):
		cmd.Kind = KindObject
	case strings.Contains(lower, "currency"):
		cmd.Kind = KindCurrency
	case strings.Contains(lower, "translate"):
		cmd.Kind = KindTranslate
		cmd.TargetLanguage = targetLanguage(raw)
	case strings.Contains(lower, "where am i"), strings.Contains(lower, "location"):
		cmd.Kind = KindLocation
	case strings.Contains(lower, "search"), strings.Contains(lower, "look up"):
		cmd.Kind = KindSearch
		cmd.Query = searchQuery(raw)
	default:
		cmd.Kind = KindUnknown
	}
	return cmd
}

// IsEmpty reports whether the command carries no input.
func (c Command) IsEmpty() bool {
	return c.Kind == ""
}

// targetLanguage returns the words after the last standalone "to",
// with the case the user typed.
func targetLanguage(raw string) string {
	words := strings.Fields(raw)
	for i := len(words) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.Trim(words[i], ".,!?"), "to") {
			lang := strings.Join(words[i+1:], " ")
			return strings.Trim(lang, " .,!?")
		}
	}
	return ""
}

// searchQuery returns the text after the search keyword, with the case
// the user typed. Offsets are taken from raw itself since lowercasing can
// change the byte length of some runes.
func searchQuery(raw string) string {
	idx, n := -1, 0
	for _, kw := range []string{"look up", "search"} {
		if i := indexFold(raw, kw); i >= 0 {
			idx, n = i, len(kw)
			break
		}
	}
	if idx < 0 {
		return ""
	}
	q := strings.TrimSpace(raw[idx+n:])
	if len(q) >= 4 && strings.EqualFold(q[:4], "for ") {
		q = strings.TrimSpace(q[4:])
	}
	return strings.Trim(q, " .!?")
}

// indexFold is a case-insensitive strings.Index for an ASCII keyword.
func indexFold(s, kw string) int {
	for i := range s {
		if i+len(kw) > len(s) {
			break
		}
		if strings.EqualFold(s[i:i+len(kw)], kw) {
			return i
		}
	}
	return -1
}

// Examples returns the help list shown to users.
func Examples() []string {
	return []string{
		"Detect object",
		"Detect currency",
		"Translate to Hindi",
		"Where am I",
		"Search for the weather in Delhi",
	}
}

// NeedsFrame reports whether the kind is answered from a camera frame.
func (k Kind) NeedsFrame() bool {
	return k == KindObject || k == KindCurrency
}

// Prompt returns the vision model prompt for frame-based kinds.
func (k Kind) Prompt() string {
	switch k {
	case KindObject:
		return "Describe all visible objects."
	case KindCurrency:
		return "What currency and denomination is this?"
	}
	return ""
}

// Title returns the UI heading for the kind.
func (k Kind) Title() string {
	switch k {
	case KindObject:
		return "🧠 Object Detection"
	case KindCurrency:
		return "💰 Currency Detection"
	case KindTranslate:
		return "🌍 Translation"
	case KindLocation:
		return "📍 Your Location"
	case KindSearch:
		return "🔎 Search"
	}
	return ""
}

// Hint returns the capture hint shown before a frame is taken.
func (k Kind) Hint() string {
	switch k {
	case KindObject:
		return "Click the button after showing the object"
	case KindCurrency:
		return "Show currency clearly before capturing"
	}
	return ""
}

// ParseKind converts a string into a Kind, returning KindUnknown for
// unrecognised values.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindObject, KindCurrency, KindTranslate, KindLocation, KindSearch:
		return k
	}
	return KindUnknown
}

// TranslatePrompt builds the prompt sent to a generative model.
func TranslatePrompt(text, lang string) string {
	return "Translate this to " + lang + ": " + text
}

// LocationPrompt builds the prompt describing a location info line.
func LocationPrompt(info string) string {
	return "Give a friendly description of this location: " + info
}
