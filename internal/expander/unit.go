package expander

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
)

// DefaultJoiner separates the units of a form.
const DefaultJoiner = "_"

// Unit is one element of a sequence: a literal word or a tag.
type Unit struct {
	Kind  index.Kind
	Value string
}

func Word(value string) Unit {
	return Unit{Kind: index.KindWord, Value: value}
}

func Tag(value string) Unit {
	return Unit{Kind: index.KindTag, Value: value}
}

func (u Unit) String() string {
	return u.Value
}

// Sequence is the ordered list of units grown from one start position.
type Sequence []Unit

// Join flattens the sequence into a form such as "the_NN".
func (s Sequence) Join(joiner string) string {
	parts := make([]string, len(s))
	for i, u := range s {
		parts[i] = u.Value
	}
	return strings.Join(parts, joiner)
}

func (s Sequence) String() string {
	return s.Join(DefaultJoiner)
}

// extend returns a copy of s with u appended; s itself is never modified.
func (s Sequence) extend(u Unit) Sequence {
	out := make(Sequence, len(s), len(s)+1)
	copy(out, s)
	return append(out, u)
}
