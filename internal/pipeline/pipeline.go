// Package pipeline drives a link run: every link harvested from the manifest
// documents is probed, then recorded or diverted, then checkpointed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
	"github.com/JakeFAU/xllinks/internal/manifest"
	"github.com/JakeFAU/xllinks/internal/metrics"
)

// DefaultFlushEvery is the number of links between proactive store saves.
const DefaultFlushEvery = 1000

// Document results reported to metrics.
const (
	docProcessed = "processed"
	docSkipped   = "skipped"
	docFailed    = "failed"
)

// Config controls Pipeline behavior.
type Config struct {
	FlushEvery int
	Group      string
}

// Deps groups the collaborators of a Pipeline. Mirror and Metrics may be nil.
type Deps struct {
	Prober     linkcheck.Prober
	Store      linkcheck.ResultStore
	Overflow   linkcheck.OverflowSink
	Checkpoint linkcheck.Checkpoint
	Extractor  linkcheck.LinkExtractor
	Mirror     linkcheck.RecordMirror
	Clock      linkcheck.Clock
	Metrics    *metrics.Recorder
	FS         afero.Fs
	Logger     *zap.Logger
}

// Summary tallies one run.
type Summary struct {
	Documents  int
	Skipped    int
	Processed  int
	Recorded   int
	Overflowed int
	Flushes    int
	// WriteErrors counts failed store, overflow, checkpoint or mirror writes.
	WriteErrors int
}

// Pipeline processes links sequentially. It is not safe for concurrent use.
type Pipeline struct {
	deps    Deps
	cfg     Config
	counter int
	summary Summary
	logger  *zap.Logger
}

// New constructs a Pipeline.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Prober == nil || deps.Store == nil || deps.Overflow == nil || deps.Checkpoint == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("prober, store, overflow, checkpoint and extractor are required")
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if cfg.Group == "" {
		cfg.Group = linkcheck.DefaultGroup
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.Named("pipeline"),
	}, nil
}

// Summary returns the tallies so far.
func (p *Pipeline) Summary() Summary {
	return p.summary
}

// Run walks the manifest entries in order. It returns ctx.Err() when the
// context is canceled; the link in progress is finished first.
func (p *Pipeline) Run(ctx context.Context, entries []manifest.Entry) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.ProcessDocument(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// ProcessDocument harvests the links of one manifest entry. Entries that do
// not name an existing .htm/.html file are logged and skipped; only context
// cancellation is returned as an error.
func (p *Pipeline) ProcessDocument(ctx context.Context, entry manifest.Entry) error {
	logger := p.logger.With(zap.Int("line", entry.Line), zap.String("document", entry.Path))
	if !entry.Known || !manifest.IsHTMLPath(entry.Path) {
		logger.Info("skipping unknown manifest entry")
		p.skip()
		return nil
	}
	exists, err := afero.Exists(p.deps.FS, entry.Path)
	if err != nil || !exists {
		logger.Warn("skipping missing document", zap.Error(err))
		p.skip()
		return nil
	}
	links, err := p.deps.Extractor.Links(entry.Path)
	if err != nil {
		logger.Error("extract links failed", zap.Error(err))
		p.summary.Documents++
		p.deps.Metrics.ObserveDocument(docFailed)
		return nil
	}
	p.summary.Documents++
	p.deps.Metrics.ObserveDocument(docProcessed)
	logger.Info("processing document")
	for link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.ProcessLink(ctx, link)
	}
	return nil
}

func (p *Pipeline) skip() {
	p.summary.Skipped++
	p.deps.Metrics.ObserveDocument(docSkipped)
}

// ProcessLink probes link and routes the outcome. Write failures are logged
// and counted; they never stop the run.
func (p *Pipeline) ProcessLink(ctx context.Context, link string) linkcheck.ProbeOutcome {
	p.counter++
	p.summary.Processed++

	outcome := p.deps.Prober.Probe(ctx, link)
	p.deps.Metrics.ObserveProbe(outcome)
	p.logger.Debug("probe timing",
		zap.Int("counter", p.counter),
		zap.String("url", link),
		zap.Duration("headers_after", outcome.HeadersAfter),
		zap.Duration("total", outcome.Total),
	)

	if outcome.Recordable() {
		p.record(ctx, outcome)
	} else {
		p.logger.Info("link not recorded",
			zap.Int("counter", p.counter),
			zap.Int("status_code", outcome.StatusCode),
			zap.String("reason", outcome.Reason),
			zap.String("url", link),
			zap.String("host", metrics.SanitizeSite(link)),
			zap.String("title", outcome.Title),
			zap.String("class", string(outcome.Class)),
		)
		p.divert(link, outcome.StatusCode)
	}

	if p.counter%p.cfg.FlushEvery == 0 {
		if err := p.deps.Store.Flush(); err != nil {
			p.writeFailed(metrics.TargetStore, "periodic flush failed", link, err)
		} else {
			p.summary.Flushes++
			p.deps.Metrics.ObserveFlush(metrics.FlushPeriodic)
			p.logger.Info("store flushed", zap.Int("counter", p.counter))
		}
	}

	if err := p.deps.Checkpoint.Stamp(p.counter); err != nil {
		p.writeFailed(metrics.TargetCheckpoint, "checkpoint stamp failed", link, err)
	}
	return outcome
}

func (p *Pipeline) record(ctx context.Context, outcome linkcheck.ProbeOutcome) {
	rec := linkcheck.NewRecord(p.cfg.Group, outcome, p.now())
	if err := p.deps.Store.Append(rec); err != nil {
		p.writeFailed(metrics.TargetStore, "append record failed", outcome.URL, err)
		// Keep the link retryable when the sheet cannot take it.
		p.divert(outcome.URL, outcome.StatusCode)
		return
	}
	p.summary.Recorded++
	p.deps.Metrics.ObserveRecorded()
	if p.deps.Mirror == nil {
		return
	}
	if err := p.deps.Mirror.Mirror(ctx, rec); err != nil {
		p.writeFailed(metrics.TargetMirror, "mirror record failed", outcome.URL, err)
	}
}

// divert appends link to the retry list.
func (p *Pipeline) divert(link string, statusCode int) {
	if err := p.deps.Overflow.Record(link, statusCode); err != nil {
		p.writeFailed(metrics.TargetOverflow, "overflow write failed", link, err)
		return
	}
	p.summary.Overflowed++
	p.deps.Metrics.ObserveOverflow()
}

// now returns the zero time without a clock; the store stamps such records.
func (p *Pipeline) now() time.Time {
	if p.deps.Clock == nil {
		return time.Time{}
	}
	return p.deps.Clock.Now()
}

func (p *Pipeline) writeFailed(target, msg, link string, err error) {
	p.summary.WriteErrors++
	p.deps.Metrics.ObserveWriteError(target)
	p.logger.Error(msg, zap.String("url", link), zap.Error(err))
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
