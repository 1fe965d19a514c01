package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
)

// Side labels a corpus as acceptable (OK) or erroneous (ERR).
type Side uint8

const (
	SideOK Side = iota
	SideErr
)

func (s Side) String() string {
	switch s {
	case SideOK:
		return "ok"
	case SideErr:
		return "err"
	default:
		return "unknown"
	}
}

// CorpusIndex maps every word and every tag of one corpus to the positions
// at which it occurs. It is immutable once Build returns and safe for
// concurrent readers.
type CorpusIndex struct {
	side      Side
	words     map[string]PositionSet
	tags      map[string]PositionSet
	tokens    int
	sentences int
}

// BuildOptions tune position assignment.
type BuildOptions struct {
	// FenceSentences leaves one unused position after every sentence so that
	// advanced position sets never cross a sentence boundary.
	FenceSentences bool
}

func newCorpusIndex(side Side) *CorpusIndex {
	return &CorpusIndex{
		side:  side,
		words: make(map[string]PositionSet),
		tags:  make(map[string]PositionSet),
	}
}

// Build reads src to the end and indexes every token. Positions start at 0
// and grow by one per token across all sentences.
func Build(side Side, src corpus.Source, opts BuildOptions) (*CorpusIndex, error) {
	idx := newCorpusIndex(side)
	pos := 0
	for src.Scan() {
		sent := src.Sentence()
		for _, tok := range sent.Tokens {
			idx.words[tok.Word] = idx.words[tok.Word].Insert(pos)
			idx.tags[tok.Tag] = idx.tags[tok.Tag].Insert(pos)
			pos++
		}
		idx.tokens += len(sent.Tokens)
		idx.sentences++
		if opts.FenceSentences {
			pos++
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Side returns the corpus side this index was built for.
func (c *CorpusIndex) Side() Side {
	return c.side
}

// Words returns the positions of word, or nil if it never occurs.
func (c *CorpusIndex) Words(word string) PositionSet {
	return c.words[word]
}

// Tags returns the positions of tag, or nil if it never occurs.
func (c *CorpusIndex) Tags(tag string) PositionSet {
	return c.tags[tag]
}

// Lookup returns the positions of term in the namespace of kind, and whether
// the term occurs at all.
func (c *CorpusIndex) Lookup(kind Kind, term string) (PositionSet, bool) {
	var set PositionSet
	var ok bool
	switch kind {
	case KindWord:
		set, ok = c.words[term]
	case KindTag:
		set, ok = c.tags[term]
	}
	return set, ok
}

// TokenCount returns the number of indexed tokens.
func (c *CorpusIndex) TokenCount() int {
	return c.tokens
}

// SentenceCount returns the number of indexed sentences.
func (c *CorpusIndex) SentenceCount() int {
	return c.sentences
}

// Vocabulary returns the number of distinct words and tags.
func (c *CorpusIndex) Vocabulary() (words int, tags int) {
	return len(c.words), len(c.tags)
}

// Snapshot returns every entry sorted by kind, then term.
func (c *CorpusIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(c.words)+len(c.tags))
	for term, positions := range c.words {
		entries = append(entries, TermEntry{Kind: KindWord, Term: term, Positions: positions})
	}
	for term, positions := range c.tags {
		entries = append(entries, TermEntry{Kind: KindTag, Term: term, Positions: positions})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// FromSnapshot rebuilds an index from entries produced by Snapshot.
func FromSnapshot(side Side, entries []TermEntry, tokens int, sentences int) *CorpusIndex {
	idx := newCorpusIndex(side)
	for _, e := range entries {
		switch e.Kind {
		case KindWord:
			idx.words[e.Term] = e.Positions
		case KindTag:
			idx.tags[e.Term] = e.Positions
		}
	}
	idx.tokens = tokens
	idx.sentences = sentences
	return idx
}
