package lexicon

import (
	"strings"
	"unicode"
)

// trailingPunct is stripped from whole-message comparisons.
const trailingPunct = ".,!?;:؟۔،\"'"

// Normalize lowercases and trims text for whole-message comparison.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimSpace(strings.TrimRight(s, trailingPunct))
}

// Tokenize splits text into lowercase words. Letters, digits, combining marks
// and inner apostrophes belong to words; everything else separates them.
func Tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '\'')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// WordCount returns the number of words in text.
func WordCount(text string) int {
	return len(Tokenize(text))
}

// WordList matches entries against tokenized text on word boundaries.
type WordList struct {
	phrases [][]string
}

// NewWordList compiles entries; multi-word entries become phrases.
func NewWordList(entries []string) *WordList {
	wl := &WordList{}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		toks := Tokenize(e)
		if len(toks) == 0 {
			continue
		}
		key := strings.Join(toks, " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		wl.phrases = append(wl.phrases, toks)
	}
	return wl
}

// Len returns the number of compiled entries.
func (w *WordList) Len() int {
	return len(w.phrases)
}

// Match reports whether any entry occurs in tokens as whole words.
func (w *WordList) Match(tokens []string) bool {
	return w.First(tokens) != ""
}

// MatchText tokenizes text and calls Match.
func (w *WordList) MatchText(text string) bool {
	return w.Match(Tokenize(text))
}

// First returns the first entry found in tokens, or "".
func (w *WordList) First(tokens []string) string {
	for _, p := range w.phrases {
		if containsPhrase(tokens, p) {
			return strings.Join(p, " ")
		}
	}
	return ""
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
