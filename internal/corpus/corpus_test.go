package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
)

func TestSplitTokenUsesLastSeparator(t *testing.T) {
	tests := []struct {
		raw  string
		word string
		tag  string
	}{
		{"the/DT", "the", "DT"},
		{"1/2/CD", "1/2", "CD"},
		{"and/or/CC", "and/or", "CC"},
		{"//SYM", "/", "SYM"},
		{"x/", "x", ""},
	}
	for _, tt := range tests {
		tok, ok := SplitToken(tt.raw, "/")
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.word, tok.Word, tt.raw)
		assert.Equal(t, tt.tag, tok.Tag, tt.raw)
	}

	_, ok := SplitToken("noseparator", "/")
	assert.False(t, ok)
}

func TestParseLine(t *testing.T) {
	tokens, bad, ok := ParseLine("  the/DT   cat/NN\tsat/VBD ", "/")
	require.True(t, ok)
	assert.Empty(t, bad)
	assert.Equal(t, []Token{{"the", "DT"}, {"cat", "NN"}, {"sat", "VBD"}}, tokens)

	_, bad, ok = ParseLine("the/DT oops sat/VBD", "/")
	assert.False(t, ok)
	assert.Equal(t, "oops", bad)
}

func TestScannerKeepsEmptyLines(t *testing.T) {
	input := "a/X b/Y\n\nc/Z\n"
	sentences, err := ReadAll(NewScanner(strings.NewReader(input), "mem", "/"))
	require.NoError(t, err)
	require.Len(t, sentences, 3)
	assert.Equal(t, 1, sentences[0].Line)
	assert.Equal(t, []string{"a", "b"}, sentences[0].Words())
	assert.Empty(t, sentences[1].Tokens)
	assert.Equal(t, 3, sentences[2].Line)
}

func TestScannerMalformedToken(t *testing.T) {
	input := "a/X\nb/Y broken\n"
	_, err := ReadAll(NewScanner(strings.NewReader(input), "err.txt", "/"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedToken))
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
	assert.Contains(t, err.Error(), "err.txt:2")
	assert.Contains(t, err.Error(), "broken")
}

func TestScannerCustomSeparator(t *testing.T) {
	sentences, err := ReadAll(NewScanner(strings.NewReader("a|b|X c|Y"), "mem", "|"))
	require.NoError(t, err)
	require.Len(t, sentences, 1)
	assert.Equal(t, []Token{{"a|b", "X"}, {"c", "Y"}}, sentences[0].Tokens)
}

func TestOpenRereadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.txt")
	require.NoError(t, os.WriteFile(path, []byte("the/DT cat/NN\nsat/VBD\n"), 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(22), f.Size())

	for pass := 0; pass < 2; pass++ {
		sentences, err := ReadAll(f.Sentences("/"))
		require.NoError(t, err)
		require.Len(t, sentences, 2, "pass %d", pass)
		assert.Equal(t, "sat", sentences[1].Tokens[0].Word)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	sentences, err := ReadAll(f.Sentences("/"))
	require.NoError(t, err)
	assert.Empty(t, sentences)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIO))
	assert.Equal(t, apperrors.ExitIO, apperrors.ExitCode(err))
}
