// Package runner orchestrates an expansion run: it indexes both corpora,
// expands every ERR sentence and hands the results to the emitters.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/emitter"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/tracing"
)

// Index sources reported in Report and in the build-duration metric.
const (
	SourceBuild    = "build"
	SourceSnapshot = "snapshot"
)

// Paths names the two input corpora and the two output files.
type Paths struct {
	OKCorpus     string
	ErrCorpus    string
	SentencesOut string
	FormsOut     string
}

// Report summarises a finished run.
type Report struct {
	RunID        string
	OKTokens     int
	ErrTokens    int
	OKSentences  int
	ErrSentences int
	OKSource     string
	ErrSource    string
	Sentences    int
	Sequences    int
	Cache        expander.CacheStats
	IndexTime    time.Duration
	ExpandTime   time.Duration
	Total        time.Duration
}

// Runner executes runs with a fixed configuration.
type Runner struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	extra   []emitter.Emitter
	newID   func() string
}

// Option customises a Runner.
type Option func(*Runner)

// WithEmitters adds emitters that receive every sentence after the output
// files and the configured sinks.
func WithEmitters(e ...emitter.Emitter) Option {
	return func(r *Runner) {
		r.extra = append(r.extra, e...)
	}
}

// New creates a Runner. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		metrics: m,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one complete expansion. Output files are only complete when
// Run returns nil.
func (r *Runner) Run(ctx context.Context, paths Paths) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: r.newID()}
	ctx = logger.WithRunID(ctx, report.RunID)
	ctx, root := tracing.StartSpan(ctx, "run", report.RunID)
	log := logger.FromContext(ctx).With("component", "runner")
	defer func() {
		root.End()
		if log.Enabled(ctx, slog.LevelDebug) {
			root.Log(log)
		}
	}()

	log.Info("run started",
		"ok_corpus", paths.OKCorpus,
		"err_corpus", paths.ErrCorpus,
		"workers", r.cfg.Expander.Workers,
		"cache_enabled", r.cfg.Expander.CacheEnabled,
		"cache_threshold", r.cfg.Expander.CacheThreshold,
		"alpha", r.cfg.Expander.ExpansionAlpha,
		"lookahead", r.cfg.Expander.Lookahead,
		"fence_sentences", r.cfg.Index.FenceSentences,
	)

	okFile, err := corpus.Open(paths.OKCorpus)
	if err != nil {
		return nil, err
	}
	defer okFile.Close()
	errFile, err := corpus.Open(paths.ErrCorpus)
	if err != nil {
		return nil, err
	}
	defer errFile.Close()

	indexStart := time.Now()
	okIdx, errIdx, err := r.buildIndices(ctx, okFile, errFile, report)
	if err != nil {
		return nil, err
	}
	report.IndexTime = time.Since(indexStart)
	r.phase("index", report.IndexTime)
	okWords, okTags := okIdx.Vocabulary()
	errWords, errTags := errIdx.Vocabulary()
	log.Info("indices ready",
		"ok_tokens", report.OKTokens,
		"ok_words", okWords,
		"ok_tags", okTags,
		"ok_source", report.OKSource,
		"err_tokens", report.ErrTokens,
		"err_words", errWords,
		"err_tags", errTags,
		"err_source", report.ErrSource,
		"duration_ms", report.IndexTime.Milliseconds(),
	)

	out, err := r.openEmitters(ctx, paths)
	if err != nil {
		return nil, err
	}

	expandStart := time.Now()
	sharded := expander.NewSharded(okIdx, errIdx, expander.OptionsFrom(r.cfg.Expander), r.metrics, r.cfg.Expander.Workers)
	expandErr := r.expand(ctx, errFile, sharded, out, report)

	closeCtx, closeSpan := tracing.StartChildSpan(ctx, "emit.close")
	closeErr := out.Close(closeCtx)
	closeSpan.End()
	if err := errors.Join(expandErr, closeErr); err != nil {
		return nil, err
	}

	report.ExpandTime = time.Since(expandStart)
	report.Cache = sharded.CacheStats()
	report.Total = time.Since(start)
	r.phase("expand", report.ExpandTime)
	r.phase("total", report.Total)

	log.Info("run finished",
		"sentences", report.Sentences,
		"sequences", report.Sequences,
		"cache_hits", report.Cache.Hits,
		"cache_misses", report.Cache.Misses,
		"cache_entries", report.Cache.Entries,
		"expand_ms", report.ExpandTime.Milliseconds(),
		"total_ms", report.Total.Milliseconds(),
	)
	return report, nil
}

func (r *Runner) buildIndices(ctx context.Context, okFile, errFile *corpus.File, report *Report) (*index.CorpusIndex, *index.CorpusIndex, error) {
	var okIdx, errIdx *index.CorpusIndex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, source, err := r.loadIndex(gctx, index.SideOK, okFile)
		okIdx, report.OKSource = idx, source
		return err
	})
	g.Go(func() error {
		idx, source, err := r.loadIndex(gctx, index.SideErr, errFile)
		errIdx, report.ErrSource = idx, source
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	report.OKTokens, report.OKSentences = okIdx.TokenCount(), okIdx.SentenceCount()
	report.ErrTokens, report.ErrSentences = errIdx.TokenCount(), errIdx.SentenceCount()
	return okIdx, errIdx, nil
}

// loadIndex returns the index for one corpus side, from a snapshot when a
// fresh one exists. A fresh build is written back as a snapshot; snapshot
// problems are logged and never fail the run.
func (r *Runner) loadIndex(ctx context.Context, side index.Side, f *corpus.File) (*index.CorpusIndex, string, error) {
	_, span := tracing.StartChildSpan(ctx, "index."+side.String())
	defer span.End()
	log := logger.FromContext(ctx).With("component", "runner", "side", side.String())
	start := time.Now()

	dir := r.cfg.Index.SnapshotDir
	var name string
	if dir != "" {
		info, err := os.Stat(f.Path())
		if err == nil {
			name = segment.Name(segment.Key{
				Side:       side,
				CorpusPath: f.Path(),
				Size:       info.Size(),
				ModTime:    info.ModTime(),
				Fenced:     r.cfg.Index.FenceSentences,
				Separator:  r.cfg.Expander.Separator,
			})
			if idx, ok := loadSnapshot(filepath.Join(dir, name), log); ok {
				r.observeIndex(side, SourceSnapshot, idx, time.Since(start))
				span.SetAttr("source", SourceSnapshot)
				span.SetAttr("tokens", idx.TokenCount())
				return idx, SourceSnapshot, nil
			}
		} else {
			log.Warn("cannot stat corpus for snapshot", "error", err)
		}
	}

	idx, err := index.Build(side, f.Sentences(r.cfg.Expander.Separator), index.BuildOptions{
		FenceSentences: r.cfg.Index.FenceSentences,
	})
	if err != nil {
		return nil, "", err
	}
	r.observeIndex(side, SourceBuild, idx, time.Since(start))
	span.SetAttr("source", SourceBuild)
	span.SetAttr("tokens", idx.TokenCount())

	if name != "" {
		path, err := segment.NewWriter(dir).Write(name, idx)
		if err != nil {
			log.Warn("writing snapshot failed", "error", err)
		} else {
			log.Info("snapshot written", "path", path)
		}
	}
	return idx, SourceBuild, nil
}

func loadSnapshot(path string, log *slog.Logger) (*index.CorpusIndex, bool) {
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}
	reader, err := segment.OpenReader(path)
	if err != nil {
		log.Warn("ignoring unreadable snapshot", "path", path, "error", err)
		return nil, false
	}
	defer reader.Close()
	idx, err := reader.Load()
	if err != nil {
		log.Warn("ignoring corrupt snapshot", "path", path, "error", err)
		return nil, false
	}
	log.Info("snapshot loaded", "path", path, "terms", reader.Terms())
	return idx, true
}

func (r *Runner) observeIndex(side index.Side, source string, idx *index.CorpusIndex, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.TokensIndexedTotal.WithLabelValues(side.String()).Add(float64(idx.TokenCount()))
	r.metrics.IndexBuildDuration.WithLabelValues(side.String(), source).Observe(d.Seconds())
}

func (r *Runner) phase(name string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.PhaseDurationSeconds.WithLabelValues(name).Set(d.Seconds())
	}
}

func (r *Runner) openEmitters(ctx context.Context, paths Paths) (*emitter.Multi, error) {
	files, err := emitter.CreateFiles(paths.SentencesOut, paths.FormsOut)
	if err != nil {
		return nil, err
	}
	sinks, err := emitter.OpenSinks(ctx, r.cfg, r.metrics)
	if err != nil {
		files.Close(ctx)
		return nil, err
	}
	all := make([]emitter.Emitter, 0, 1+len(sinks)+len(r.extra))
	all = append(all, files)
	all = append(all, sinks...)
	all = append(all, r.extra...)
	return emitter.NewMulti(all...), nil
}

// expand re-reads the ERR corpus in batches and emits results in corpus
// order.
func (r *Runner) expand(ctx context.Context, errFile *corpus.File, sharded *expander.Sharded, out emitter.Emitter, report *Report) error {
	ctx, span := tracing.StartChildSpan(ctx, "expand")
	defer span.End()
	log := logger.FromContext(ctx).With("component", "runner")
	every := r.cfg.Expander.ProgressEvery
	started := time.Now()

	size := max(r.cfg.Expander.BatchSize, 1)
	batch := make([]corpus.Sentence, 0, size)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		results, err := sharded.ExpandBatch(ctx, batch)
		if err != nil {
			return err
		}
		for _, res := range results {
			if err := out.Emit(ctx, res); err != nil {
				return err
			}
			report.Sentences++
			report.Sequences += len(res.Expansions)
			if every > 0 && report.Sentences%every == 0 {
				elapsed := time.Since(started)
				log.Info("progress",
					"sentences", report.Sentences,
					"of", report.ErrSentences,
					"sequences", report.Sequences,
					"sentences_per_sec", float64(report.Sentences)/elapsed.Seconds(),
				)
			}
		}
		batch = batch[:0]
		return nil
	}

	scanner := errFile.Sentences(r.cfg.Expander.Separator)
	for scanner.Scan() {
		batch = append(batch, scanner.Sentence())
		if len(batch) == size {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	span.SetAttr("sentences", report.Sentences)
	span.SetAttr("sequences", report.Sequences)
	return nil
}
