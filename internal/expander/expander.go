// Package expander grows, for every token of an erroneous sentence, the
// longest sequence of words and tags starting there whose occurrences
// concentrate in the erroneous corpus. Growth is greedy and left to right:
// at each step the sequence is extended by the next token's tag or word, or
// it stops.
package expander

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/suspicion"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
)

// Options tune the expansion decision and the cache.
type Options struct {
	CacheEnabled   bool
	CacheThreshold int
	Alpha          float64
	// Lookahead additionally requires a candidate to beat the suspicion of
	// the sequence without its first unit. On by default; turning it off
	// leaves the plain "beats the current sequence" rule.
	Lookahead bool
	Joiner    string
}

// DefaultOptions returns the reference settings.
func DefaultOptions() Options {
	return Options{
		CacheEnabled:   true,
		CacheThreshold: DefaultCacheThreshold,
		Alpha:          suspicion.DefaultAlpha,
		Lookahead:      true,
		Joiner:         DefaultJoiner,
	}
}

// OptionsFrom maps the expander section of the run configuration.
func OptionsFrom(cfg config.ExpanderConfig) Options {
	joiner := cfg.Joiner
	if joiner == "" {
		joiner = DefaultJoiner
	}
	return Options{
		CacheEnabled:   cfg.CacheEnabled,
		CacheThreshold: cfg.CacheThreshold,
		Alpha:          cfg.ExpansionAlpha,
		Lookahead:      cfg.Lookahead,
		Joiner:         joiner,
	}
}

// Expansion is a finalized sequence.
type Expansion struct {
	Start     int
	Sequence  Sequence
	Form      string
	Suspicion float64
	OKCount   int
	ErrCount  int
}

// SentenceResult holds the expansions of every start position of a sentence,
// in position order.
type SentenceResult struct {
	Sentence   corpus.Sentence
	Expansions []Expansion
}

// Forms returns the form of every expansion: the sentence rewritten with
// super-tokens.
func (r SentenceResult) Forms() []string {
	forms := make([]string, len(r.Expansions))
	for i, e := range r.Expansions {
		forms[i] = e.Form
	}
	return forms
}

// Expander runs the greedy expansion against a pair of corpus indices. It
// owns its cache and must not be used from more than one goroutine; the
// indices may be shared.
type Expander struct {
	okIdx   *index.CorpusIndex
	errIdx  *index.CorpusIndex
	cache   *Cache
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Expander with a private cache. m may be nil.
func New(okIdx, errIdx *index.CorpusIndex, opts Options, m *metrics.Metrics) *Expander {
	if opts.Joiner == "" {
		opts.Joiner = DefaultJoiner
	}
	return &Expander{
		okIdx:   okIdx,
		errIdx:  errIdx,
		cache:   NewCache(opts.CacheThreshold, opts.CacheEnabled, m),
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "expander"),
	}
}

// Cache exposes the expander's cache for statistics.
func (e *Expander) Cache() *Cache {
	return e.cache
}

// state is the sequence under construction.
type state struct {
	seq    Sequence
	okSet  index.PositionSet
	errSet index.PositionSet
	susp   float64
}

// candidate is a one-unit extension of the current state.
type candidate struct {
	unit   Unit
	okSet  index.PositionSet
	errSet index.PositionSet
	susp   float64
	factor float64
}

func (c candidate) margin(st *state) float64 {
	return c.susp - st.susp*c.factor
}

// advanced lazily aligns the current position sets with the next token.
type advanced struct {
	okSet  index.PositionSet
	errSet index.PositionSet
	done   bool
}

func (a *advanced) get(st *state) (index.PositionSet, index.PositionSet) {
	if !a.done {
		a.okSet = st.okSet.Advance()
		a.errSet = st.errSet.Advance()
		a.done = true
	}
	return a.okSet, a.errSet
}

// ExpandSentence expands every start position of sent.
func (e *Expander) ExpandSentence(sent corpus.Sentence) (SentenceResult, error) {
	result := SentenceResult{
		Sentence:   sent,
		Expansions: make([]Expansion, 0, len(sent.Tokens)),
	}
	for i := range sent.Tokens {
		exp, err := e.ExpandAt(sent, i)
		if err != nil {
			return SentenceResult{}, err
		}
		result.Expansions = append(result.Expansions, exp)
	}
	if e.metrics != nil {
		e.metrics.SentencesTotal.Inc()
	}
	return result, nil
}

// ExpandAt grows the sequence starting at token i of sent. The start word
// must occur in the ERR index; sent is expected to come from the ERR corpus.
func (e *Expander) ExpandAt(sent corpus.Sentence, i int) (Expansion, error) {
	tokens := sent.Tokens
	first := Word(tokens[i].Word)
	errSet, found := e.errIdx.Lookup(index.KindWord, first.Value)
	if !found {
		return Expansion{}, apperrors.Newf(apperrors.ErrInvariant, apperrors.ExitInvariant,
			"line %d, token %d: word %q is not in the ERR index", sent.Line, i, first.Value)
	}
	okSet := e.okIdx.Words(first.Value)
	st := &state{
		seq:    Sequence{first},
		okSet:  okSet,
		errSet: errSet,
		susp:   suspicion.Score(len(okSet), len(errSet)),
	}

	for j := i + 1; j < len(tokens); j++ {
		if !e.step(st, tokens[j]) {
			break
		}
	}

	exp := Expansion{
		Start:     i,
		Sequence:  st.seq,
		Form:      st.seq.Join(e.opts.Joiner),
		Suspicion: st.susp,
		OKCount:   len(st.okSet),
		ErrCount:  len(st.errSet),
	}
	if e.metrics != nil {
		e.metrics.SequencesTotal.Inc()
		e.metrics.SequenceLength.Observe(float64(len(st.seq)))
		e.metrics.SequenceSuspicion.Observe(st.susp)
	}
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("sequence finalized",
			"line", sent.Line,
			"start", i,
			"form", exp.Form,
			"suspicion", exp.Suspicion,
			"ok_count", exp.OKCount,
			"err_count", exp.ErrCount,
		)
	}
	return exp, nil
}

// step tries to extend st with the tag or the word of tok. It reports
// whether the sequence grew.
func (e *Expander) step(st *state, tok corpus.Token) bool {
	var adv advanced
	tagCand := e.candidate(st, Tag(tok.Tag), &adv)
	wordCand := e.candidate(st, Word(tok.Word), &adv)

	chosen, ok := e.choose(st, tagCand, wordCand)
	if !ok {
		return false
	}
	st.seq = st.seq.extend(chosen.unit)
	st.okSet = chosen.okSet
	st.errSet = chosen.errSet
	st.susp = chosen.susp
	if e.metrics != nil {
		e.metrics.ExtensionsTotal.WithLabelValues(chosen.unit.Kind.String()).Inc()
	}
	return true
}

// candidate computes the positions and score of st extended by u. First-step
// bigrams go through the cache.
func (e *Expander) candidate(st *state, u Unit, adv *advanced) candidate {
	var okSet, errSet index.PositionSet
	hit := false
	if len(st.seq) == 1 {
		okSet, errSet, hit = e.cache.lookupPair(st.seq[0], u)
	}
	if !hit {
		advOK, advErr := adv.get(st)
		okSet = advOK.Intersect(e.positions(e.okIdx, u))
		errSet = advErr.Intersect(e.positions(e.errIdx, u))
		if len(st.seq) == 1 {
			e.cache.storePair(st.seq[0], u, okSet, errSet)
		}
	}

	// No error support means nothing to be suspicious about.
	susp := 0.0
	if len(errSet) > 0 {
		susp = suspicion.Score(len(okSet), len(errSet))
	}
	return candidate{
		unit:   u,
		okSet:  okSet,
		errSet: errSet,
		susp:   susp,
		factor: suspicion.ExpansionFactor(e.opts.Alpha, len(errSet)),
	}
}

// choose applies the decision rule. A candidate qualifies when its suspicion
// beats the current suspicion scaled by its own expansion factor. If both
// qualify the higher suspicion wins, then the larger margin, then the tag.
func (e *Expander) choose(st *state, tagCand, wordCand candidate) (candidate, bool) {
	tagOK := e.qualifies(st, tagCand)
	wordOK := e.qualifies(st, wordCand)
	switch {
	case tagOK && wordOK:
		if wordCand.susp > tagCand.susp ||
			(wordCand.susp == tagCand.susp && wordCand.margin(st) > tagCand.margin(st)) {
			return wordCand, true
		}
		return tagCand, true
	case tagOK:
		return tagCand, true
	case wordOK:
		return wordCand, true
	default:
		return candidate{}, false
	}
}

func (e *Expander) qualifies(st *state, c candidate) bool {
	if !(c.susp > st.susp*c.factor) {
		return false
	}
	if e.opts.Lookahead {
		tail := st.seq[1:].extend(c.unit)
		if !(c.susp > e.SequenceRatio(tail)*c.factor) {
			return false
		}
	}
	return true
}

// SequenceRatio computes the suspicion of an arbitrary sequence directly from
// the indices. The bigram cache is consulted for, and fed with, the first two
// units.
func (e *Expander) SequenceRatio(seq Sequence) float64 {
	if len(seq) == 0 {
		return 0.0
	}
	var okSet, errSet index.PositionSet
	start := 0
	if len(seq) > 1 {
		if o, r, hit := e.cache.lookupPair(seq[0], seq[1]); hit {
			okSet, errSet = o, r
			start = 2
		}
	}
	if start == 0 {
		okSet = e.positions(e.okIdx, seq[0])
		errSet = e.positions(e.errIdx, seq[0])
		start = 1
	}
	for k := start; k < len(seq); k++ {
		okSet = okSet.Advance().Intersect(e.positions(e.okIdx, seq[k]))
		errSet = errSet.Advance().Intersect(e.positions(e.errIdx, seq[k]))
		if k == 1 {
			e.cache.storePair(seq[0], seq[1], okSet, errSet)
		}
	}
	return suspicion.Score(len(okSet), len(errSet))
}

func (e *Expander) positions(idx *index.CorpusIndex, u Unit) index.PositionSet {
	switch u.Kind {
	case index.KindWord:
		return idx.Words(u.Value)
	case index.KindTag:
		return idx.Tags(u.Value)
	default:
		return nil
	}
}
