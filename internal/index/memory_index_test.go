package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
)

func build(t *testing.T, side Side, text string, opts BuildOptions) *CorpusIndex {
	t.Helper()
	idx, err := Build(side, corpus.NewScanner(strings.NewReader(text), "mem", "/"), opts)
	require.NoError(t, err)
	return idx
}

func TestBuildPositionsMapBackToTokens(t *testing.T) {
	text := "the/DT cat/NN sat/VBD\n\nthe/DT dog/NN\n"
	idx := build(t, SideOK, text, BuildOptions{})

	sentences, err := corpus.ReadAll(corpus.NewScanner(strings.NewReader(text), "mem", "/"))
	require.NoError(t, err)
	var flat []corpus.Token
	for _, s := range sentences {
		flat = append(flat, s.Tokens...)
	}

	for _, e := range idx.Snapshot() {
		for _, pos := range e.Positions {
			require.Less(t, pos, len(flat))
			if e.Kind == KindWord {
				assert.Equal(t, e.Term, flat[pos].Word)
			} else {
				assert.Equal(t, e.Term, flat[pos].Tag)
			}
		}
	}
	assert.Equal(t, PositionSet{0, 3}, idx.Words("the"))
	assert.Equal(t, PositionSet{1, 4}, idx.Tags("NN"))
	assert.Equal(t, 5, idx.TokenCount())
	assert.Equal(t, 3, idx.SentenceCount())
	words, tags := idx.Vocabulary()
	assert.Equal(t, 4, words)
	assert.Equal(t, 3, tags)
}

func TestBuildIsDeterministic(t *testing.T) {
	text := "a/X b/Y a/X\nc/Z a/Y\n"
	first := build(t, SideErr, text, BuildOptions{})
	second := build(t, SideErr, text, BuildOptions{})
	assert.Equal(t, first.Snapshot(), second.Snapshot())
}

func TestBuildWithoutFenceCrossesSentences(t *testing.T) {
	idx := build(t, SideOK, "a/X\nb/Y\n", BuildOptions{})
	adjacent := idx.Words("a").Advance().Intersect(idx.Words("b"))
	assert.Equal(t, PositionSet{1}, adjacent)
}

func TestBuildWithFence(t *testing.T) {
	idx := build(t, SideOK, "a/X\nb/Y\n", BuildOptions{FenceSentences: true})
	assert.Equal(t, PositionSet{0}, idx.Words("a"))
	assert.Equal(t, PositionSet{2}, idx.Words("b"))
	assert.Empty(t, idx.Words("a").Advance().Intersect(idx.Words("b")))
	assert.Equal(t, 2, idx.TokenCount())
}

func TestLookup(t *testing.T) {
	idx := build(t, SideErr, "run/VB run/NN\n", BuildOptions{})

	set, ok := idx.Lookup(KindWord, "run")
	assert.True(t, ok)
	assert.Equal(t, PositionSet{0, 1}, set)

	set, ok = idx.Lookup(KindTag, "NN")
	assert.True(t, ok)
	assert.Equal(t, PositionSet{1}, set)

	_, ok = idx.Lookup(KindWord, "VB")
	assert.False(t, ok, "words and tags are separate namespaces")
	assert.Nil(t, idx.Words("missing"))
}

func TestBuildMalformed(t *testing.T) {
	_, err := Build(SideOK, corpus.NewScanner(strings.NewReader("ok/X bad\n"), "mem", "/"), BuildOptions{})
	require.Error(t, err)
}

func TestFromSnapshotRoundTrip(t *testing.T) {
	idx := build(t, SideErr, "the/DT cat/NN\nthe/DT\n", BuildOptions{})
	restored := FromSnapshot(SideErr, idx.Snapshot(), idx.TokenCount(), idx.SentenceCount())
	assert.Equal(t, idx.Snapshot(), restored.Snapshot())
	assert.Equal(t, SideErr, restored.Side())
	assert.Equal(t, 3, restored.TokenCount())
	assert.Equal(t, 2, restored.SentenceCount())
}
