// Package lexicon loads the versioned word lists used by the lexical
// classification tiers and matches them on whole-word boundaries.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// file mirrors the YAML layout of a lexicon file.
type file struct {
	Version  string `yaml:"version"`
	Chitchat struct {
		Greetings       []string `yaml:"greetings"`
		Farewells       []string `yaml:"farewells"`
		Acknowledgments []string `yaml:"acknowledgments"`
	} `yaml:"chitchat"`
	Affirmative  []string `yaml:"affirmative"`
	Rejection    []string `yaml:"rejection"`
	CanonicalYes []string `yaml:"canonical_yes"`
	CanonicalNo  []string `yaml:"canonical_no"`
}

// Lexicon holds compiled word lists.
type Lexicon struct {
	Version     string
	Chitchat    *WordList
	Affirmative *WordList
	Rejection   *WordList

	canonicalYes map[string]struct{}
	canonicalNo  map[string]struct{}
}

// Default returns the embedded lexicon.
func Default() *Lexicon {
	lex, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return lex
}

// Load reads a lexicon file. An empty path returns the embedded default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse compiles a lexicon from YAML.
func Parse(data []byte) (*Lexicon, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(f.Version) == "" {
		return nil, fmt.Errorf("missing version")
	}

	chitchat := make([]string, 0, len(f.Chitchat.Greetings)+len(f.Chitchat.Farewells)+len(f.Chitchat.Acknowledgments))
	chitchat = append(chitchat, f.Chitchat.Greetings...)
	chitchat = append(chitchat, f.Chitchat.Farewells...)
	chitchat = append(chitchat, f.Chitchat.Acknowledgments...)

	lex := &Lexicon{
		Version:      f.Version,
		Chitchat:     NewWordList(chitchat),
		Affirmative:  NewWordList(f.Affirmative),
		Rejection:    NewWordList(f.Rejection),
		canonicalYes: toSet(f.CanonicalYes),
		canonicalNo:  toSet(f.CanonicalNo),
	}
	for name, wl := range map[string]*WordList{
		"chitchat":    lex.Chitchat,
		"affirmative": lex.Affirmative,
		"rejection":   lex.Rejection,
	} {
		if wl.Len() == 0 {
			return nil, fmt.Errorf("%s list is empty", name)
		}
	}
	return lex, nil
}

// IsCanonicalYes reports whether the whole message equals a canonical yes token.
func (l *Lexicon) IsCanonicalYes(text string) bool {
	_, ok := l.canonicalYes[Normalize(text)]
	return ok
}

// IsCanonicalNo reports whether the whole message equals a canonical no token.
func (l *Lexicon) IsCanonicalNo(text string) bool {
	_, ok := l.canonicalNo[Normalize(text)]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if n := Normalize(item); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
