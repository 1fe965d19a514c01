package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/runner"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

type flags struct {
	configPath     string
	debug          bool
	workers        int
	cacheThreshold int
	noCache        bool
	alpha          float64
	lookahead      bool
	fence          bool
	snapshotDir    string
	metricsPort    int
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "expand [flags] <ok-corpus> <err-corpus> <sentences-out> <forms-out>",
		Short: "Expand suspicious word/tag sequences of an erroneous corpus",
		Long: `Indexes a corpus of correct (OK) and a corpus of erroneous (ERR) tagged
sentences, then grows, for every token of every ERR sentence, the longest
sequence of words and tags whose occurrences concentrate in the ERR corpus.

Each corpus line is one sentence of space-separated word/TAG tokens. The
sentence output has one line per ERR sentence with its expanded forms; the
forms output has one line "<form> <suspicion> <ok> <err>" per form.`,
		Args:          exactArgs(4),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, f, runner.Paths{
				OKCorpus:     args[0],
				ErrCorpus:    args[1],
				SentencesOut: args[2],
				FormsOut:     args[3],
			})
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	})

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	fs.BoolVarP(&f.debug, "debug", "d", false, "log every finalized sequence")
	fs.IntVar(&f.workers, "workers", 1, "number of expansion workers")
	fs.IntVar(&f.cacheThreshold, "cache-threshold", 5, "minimum bigram result size to cache")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the first-step bigram cache")
	fs.Float64Var(&f.alpha, "alpha", 0.5, "expansion factor decay, 0 disables the factor")
	fs.BoolVar(&f.lookahead, "lookahead", true, "require candidates to beat the sequence without its first unit (--lookahead=false for the plain rule)")
	fs.BoolVar(&f.fence, "fence-sentences", false, "never match sequences across sentence boundaries")
	fs.StringVar(&f.snapshotDir, "snapshot-dir", "", "directory for corpus index snapshots")
	fs.IntVar(&f.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port")
	return cmd
}

// exactArgs maps an argument count mismatch to a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
				"expected %d arguments, got %d", n, len(args))
		}
		return nil
	}
}

func run(cmd *cobra.Command, f flags, paths runner.Paths) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "%v", err)
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("expand")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	report, err := runner.New(cfg, m).Run(cmd.Context(), paths)
	if err != nil {
		log.Error("run failed", "error", err)
		return err
	}
	log.Info("done",
		"run_id", report.RunID,
		"sentences", report.Sentences,
		"sequences", report.Sequences,
		"duration", report.Total.Round(time.Millisecond).String(),
	)
	return nil
}

// applyFlags overrides the loaded config with explicitly set flags only.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	fs := cmd.Flags()
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if fs.Changed("workers") {
		cfg.Expander.Workers = f.workers
	}
	if fs.Changed("cache-threshold") {
		cfg.Expander.CacheThreshold = f.cacheThreshold
	}
	if f.noCache {
		cfg.Expander.CacheEnabled = false
	}
	if fs.Changed("alpha") {
		cfg.Expander.ExpansionAlpha = f.alpha
	}
	if fs.Changed("lookahead") {
		cfg.Expander.Lookahead = f.lookahead
	}
	if fs.Changed("fence-sentences") {
		cfg.Index.FenceSentences = f.fence
	}
	if fs.Changed("snapshot-dir") {
		cfg.Index.SnapshotDir = f.snapshotDir
	}
	if fs.Changed("metrics-port") {
		cfg.Metrics.Enabled = f.metricsPort > 0
		cfg.Metrics.Port = f.metricsPort
	}
}
