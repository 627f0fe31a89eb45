// Package app wires the configured services for one link run and owns their
// lifetimes: the result store is closed and the checkpoint stamped DONE on
// every exit path.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/checkpoint"
	"github.com/JakeFAU/xllinks/internal/clock/system"
	"github.com/JakeFAU/xllinks/internal/config"
	"github.com/JakeFAU/xllinks/internal/extract"
	"github.com/JakeFAU/xllinks/internal/id/uuid"
	"github.com/JakeFAU/xllinks/internal/linkcheck"
	"github.com/JakeFAU/xllinks/internal/logging"
	"github.com/JakeFAU/xllinks/internal/manifest"
	"github.com/JakeFAU/xllinks/internal/metrics"
	"github.com/JakeFAU/xllinks/internal/mirror/postgres"
	"github.com/JakeFAU/xllinks/internal/overflow"
	"github.com/JakeFAU/xllinks/internal/pipeline"
	"github.com/JakeFAU/xllinks/internal/probe"
	"github.com/JakeFAU/xllinks/internal/store/xlsx"
)

// Args are the three positional command arguments.
type Args struct {
	Manifest string
	Workbook string
	Sheet    string
}

// App holds the long-lived collaborators of a run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	fs     afero.Fs
	clock  linkcheck.Clock
	prober linkcheck.Prober
	runID  string
}

// Option customizes an App.
type Option func(*App)

// WithProber replaces the network prober.
func WithProber(p linkcheck.Prober) Option {
	return func(a *App) { a.prober = p }
}

// WithClock replaces the wall clock used for stamps and records.
func WithClock(c linkcheck.Clock) Option {
	return func(a *App) { a.clock = c }
}

// New creates an App from cfg.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
		clock:  system.New(),
		runID:  uuid.NewUUIDGenerator().MustRunID(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prober == nil {
		a.prober = probe.New(probe.Config{
			UserAgent:    cfg.Probe.UserAgent,
			Timeout:      cfg.ProbeTimeout(),
			MaxBodyBytes: cfg.Probe.MaxBodyBytes,
			RatePerHost:  cfg.Probe.RatePerHost,
			BurstPerHost: cfg.Probe.BurstPerHost,
		}, logger.Named("probe"))
	}
	return a
}

// RunID identifies this run in logs, metrics and mirrored rows.
func (a *App) RunID() string {
	return a.runID
}

// Run processes the manifest into the workbook. Store-open and manifest
// failures are returned; per-link failures are only logged.
func (a *App) Run(ctx context.Context, args Args) (summary pipeline.Summary, err error) {
	logger := logging.ForRun(a.logger, a.runID, args.Manifest)
	if !manifest.IsManifest(args.Manifest) {
		return summary, fmt.Errorf("%w: %s", manifest.ErrNotManifest, args.Manifest)
	}

	stampPath, err := manifest.SidePath(args.Manifest, a.cfg.Files.CheckpointName)
	if err != nil {
		return summary, err
	}
	overflowPath, err := manifest.SidePath(args.Manifest, a.cfg.Files.OverflowName)
	if err != nil {
		return summary, err
	}

	rec := metrics.New()
	stamp := checkpoint.New(a.fs, stampPath, a.clock)
	defer func() {
		if derr := stamp.Done(); derr != nil {
			rec.ObserveWriteError(metrics.TargetCheckpoint)
			logger.Error("final checkpoint failed", zap.Error(derr))
		}
		rec.MarkCompleted(a.clock.Now())
		if werr := rec.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
			logger.Warn("metrics export failed", zap.Error(werr))
		}
	}()

	store, err := xlsx.Open(args.Workbook, args.Sheet, xlsx.Options{
		Clock:  a.clock,
		Logger: logger.Named("store"),
	})
	if err != nil {
		logger.Error("open result store failed", zap.String("workbook", args.Workbook), zap.Error(err))
		return summary, fmt.Errorf("open result store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			rec.ObserveWriteError(metrics.TargetStore)
			logger.Error("close result store failed", zap.Error(cerr))
			return
		}
		summary.Flushes++
		rec.ObserveFlush(metrics.FlushFinal)
		logger.Info("run finished",
			zap.Int("documents", summary.Documents),
			zap.Int("skipped", summary.Skipped),
			zap.Int("processed", summary.Processed),
			zap.Int("recorded", summary.Recorded),
			zap.Int("overflowed", summary.Overflowed),
			zap.Int("flushes", summary.Flushes),
			zap.Int("write_errors", summary.WriteErrors),
		)
	}()

	entries, err := manifest.Read(a.fs, args.Manifest)
	if err != nil {
		logger.Error("read manifest failed", zap.Error(err))
		return summary, fmt.Errorf("read manifest: %w", err)
	}

	var mirror linkcheck.RecordMirror
	if a.cfg.Mirror.DSN != "" {
		m, merr := postgres.NewRecordMirror(ctx, postgres.Config{
			DSN:   a.cfg.Mirror.DSN,
			Table: a.cfg.Mirror.Table,
			RunID: a.runID,
		})
		if merr != nil {
			logger.Warn("record mirror disabled", zap.Error(merr))
		} else {
			defer m.Close()
			mirror = m
		}
	}

	p, err := pipeline.New(pipeline.Deps{
		Prober:     a.prober,
		Store:      store,
		Overflow:   overflow.New(a.fs, overflowPath),
		Checkpoint: stamp,
		Extractor:  extract.New(a.fs),
		Mirror:     mirror,
		Clock:      a.clock,
		Metrics:    rec,
		FS:         a.fs,
		Logger:     logger,
	}, pipeline.Config{
		FlushEvery: a.cfg.Store.FlushEvery,
		Group:      a.cfg.Store.Group,
	})
	if err != nil {
		return summary, fmt.Errorf("build pipeline: %w", err)
	}

	logger.Info("run started",
		zap.String("workbook", args.Workbook),
		zap.String("sheet", args.Sheet),
		zap.Int("documents", len(entries)),
	)
	runErr := p.Run(ctx, entries)
	summary = p.Summary()
	if runErr != nil {
		if pipeline.IsCanceled(runErr) {
			logger.Warn("run interrupted", zap.Int("processed", summary.Processed))
		}
		return summary, runErr
	}
	return summary, nil
}

// IsFatal reports whether err ended the run before any link was processed.
func IsFatal(err error) bool {
	return errors.Is(err, xlsx.ErrNotWritable) ||
		errors.Is(err, xlsx.ErrSchemaMismatch) ||
		errors.Is(err, manifest.ErrNotManifest)
}
