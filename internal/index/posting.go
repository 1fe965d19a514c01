package index

import "sort"

// PositionSet is an ascending, duplicate-free list of corpus positions.
type PositionSet []int

// Len returns the number of positions.
func (p PositionSet) Len() int {
	return len(p)
}

// Insert adds pos to the set. Appending in reading order is O(1); an
// out-of-order position falls back to a sorted insert.
func (p PositionSet) Insert(pos int) PositionSet {
	n := len(p)
	if n == 0 || p[n-1] < pos {
		return append(p, pos)
	}
	i := sort.SearchInts(p, pos)
	if i < n && p[i] == pos {
		return p
	}
	p = append(p, 0)
	copy(p[i+1:], p[i:])
	p[i] = pos
	return p
}

// Advance returns a new set with every position incremented by one, aligning
// a sequence's positions with the token that follows it.
func (p PositionSet) Advance() PositionSet {
	if len(p) == 0 {
		return nil
	}
	out := make(PositionSet, len(p))
	for i, pos := range p {
		out[i] = pos + 1
	}
	return out
}

// Intersect returns the positions present in both sets.
func (p PositionSet) Intersect(other PositionSet) PositionSet {
	small, big := p, other
	if len(small) > len(big) {
		small, big = big, small
	}
	if len(small) == 0 {
		return nil
	}
	// Skewed sizes (rare word against a frequent tag): binary search.
	if len(big) > 8*len(small) {
		out := make(PositionSet, 0, len(small))
		lo := 0
		for _, pos := range small {
			lo += sort.SearchInts(big[lo:], pos)
			if lo >= len(big) {
				break
			}
			if big[lo] == pos {
				out = append(out, pos)
			}
		}
		return out
	}
	out := make(PositionSet, 0, len(small))
	i, j := 0, 0
	for i < len(small) && j < len(big) {
		switch {
		case small[i] < big[j]:
			i++
		case small[i] > big[j]:
			j++
		default:
			out = append(out, small[i])
			i++
			j++
		}
	}
	return out
}

// Kind distinguishes the two namespaces of a corpus index.
type Kind uint8

const (
	KindWord Kind = iota
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}

// TermEntry is one word or tag with its positions, as exported by Snapshot.
type TermEntry struct {
	Kind      Kind
	Term      string
	Positions PositionSet
}
