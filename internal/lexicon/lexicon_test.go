package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"punctuation", "Yes, please!", []string{"yes", "please"}},
		{"apostrophe kept", "Don't send it", []string{"don't", "send", "it"}},
		{"curly apostrophe", "Don’t", []string{"don't"}},
		{"quoted word", "'no'", []string{"no"}},
		{"urdu", "جی ہاں۔", []string{"جی", "ہاں"}},
		{"emoji separates", "ok👍thanks", []string{"ok", "thanks"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestWordListWholeWord(t *testing.T) {
	wl := NewWordList([]string{"na", "no", "not now"})

	tests := []struct {
		text string
		want bool
	}{
		{"on what grounds can a tenant be evicted?", false},
		{"I need a notice", false},
		{"nana", false},
		{"na", true},
		{"No.", true},
		{"not now please", true},
		{"now not", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, wl.MatchText(tt.text))
		})
	}
}

func TestWordListFirst(t *testing.T) {
	wl := NewWordList([]string{"maybe later", "later", "Maybe  Later"})
	assert.Equal(t, 2, wl.Len())
	assert.Equal(t, "maybe later", wl.First(Tokenize("maybe later, thanks")))
	assert.Equal(t, "", wl.First(Tokenize("maybe")))
}

func TestDefault(t *testing.T) {
	lex := Default()
	require.NotEmpty(t, lex.Version)

	assert.True(t, lex.Affirmative.MatchText("yes please"))
	assert.True(t, lex.Affirmative.MatchText("جی ہاں"))
	assert.True(t, lex.Affirmative.MatchText("haan bhej do"))
	assert.True(t, lex.Rejection.MatchText("no thanks"))
	assert.True(t, lex.Rejection.MatchText("nahi chahiye"))
	assert.True(t, lex.Rejection.MatchText("نہیں"))
	assert.False(t, lex.Rejection.MatchText("on what grounds can a tenant be evicted?"))
	assert.True(t, lex.Chitchat.MatchText("Assalam o alaikum"))
	assert.True(t, lex.Chitchat.MatchText("thank you!"))

	assert.True(t, lex.IsCanonicalYes(" 👍 "))
	assert.True(t, lex.IsCanonicalYes("Y."))
	assert.True(t, lex.IsCanonicalNo("0"))
	assert.False(t, lex.IsCanonicalNo("no way"))
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses embedded", func(t *testing.T) {
		lex, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Version, lex.Version)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lexicon.yaml")
		data := `version: test-1
chitchat:
  greetings: [hello]
affirmative: [yes]
rejection: [no]
canonical_yes: ["y"]
canonical_no: ["n"]
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		lex, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "test-1", lex.Version)
		assert.Equal(t, 1, lex.Chitchat.Len())
		assert.False(t, lex.Affirmative.MatchText("sure"))
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := Parse([]byte("affirmative: [yes]\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := Parse([]byte("version: x\nchitchat:\n  greetings: [hi]\naffirmative: [yes]\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejection")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
