// Package probe fetches a single link with Colly and classifies the outcome.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
	"github.com/JakeFAU/xllinks/internal/policy/ratelimit"
)

const defaultTimeout = 10 * time.Second

var errProbeCanceled = errors.New("probe canceled")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes caps the body read per response; 0 means no limit.
	MaxBodyBytes int
	// RatePerHost spaces probes to one host; 0 disables the limit.
	RatePerHost  float64
	BurstPerHost int
}

// Prober implements linkcheck.Prober using the Colly collector.
type Prober struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// probeState collects what the hooks observe during one visit.
type probeState struct {
	start      time.Time
	headersAt  time.Time
	statusCode int
	title      string
	titleSeen  bool
	hookErr    error
}

// New builds a Prober.
func New(cfg Config, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	// Links are not deduplicated across a run; the same URL may be probed twice.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = cfg.MaxBodyBytes
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport(cfg.Timeout))
	c.SetRequestTimeout(cfg.Timeout)

	return &Prober{
		cfg:           cfg,
		baseCollector: c,
		limiter:       ratelimit.New(ratelimit.Config{PerHostRPS: cfg.RatePerHost, Burst: cfg.BurstPerHost}),
		logger:        logger,
	}
}

// Probe issues one GET for rawURL and never fails: transport errors,
// timeouts and panics are all folded into the returned outcome.
func (p *Prober) Probe(ctx context.Context, rawURL string) (outcome linkcheck.ProbeOutcome) {
	state := &probeState{start: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			outcome = problemOutcome(rawURL, fmt.Errorf("panic: %v", r))
		}
		outcome.Total = time.Since(state.start)
		p.logger.Debug("probe finished",
			zap.String("url", rawURL),
			zap.Int("status_code", outcome.StatusCode),
			zap.String("class", string(outcome.Class)),
			zap.Duration("headers_after", outcome.HeadersAfter),
			zap.Duration("total", outcome.Total),
			zap.String("title", outcome.Title),
		)
	}()

	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return p.classify(rawURL, &probeState{}, fmt.Errorf("%w: %w", errProbeCanceled, err))
	}

	collector := p.baseCollector.Clone()
	p.configureCollectorHooks(collector, state)

	err := p.runCollector(ctx, collector, rawURL)
	if errors.Is(err, errProbeCanceled) {
		// The visit goroutine may still be writing to state.
		return p.classify(rawURL, &probeState{}, err)
	}
	if err == nil && state.hookErr != nil {
		err = state.hookErr
	}
	outcome = p.classify(rawURL, state, err)
	if !state.headersAt.IsZero() {
		outcome.HeadersAfter = state.headersAt.Sub(state.start)
	}
	return outcome
}

func (p *Prober) configureCollectorHooks(hooks collectorHooks, state *probeState) {
	hooks.OnResponseHeaders(func(r *colly.Response) {
		state.headersAt = time.Now()
		state.statusCode = r.StatusCode
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.statusCode = r.StatusCode
	})

	hooks.OnHTML("title", func(e *colly.HTMLElement) {
		if state.titleSeen {
			return
		}
		state.titleSeen = true
		state.title = normalizeTitle(e.Text)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		if state.hookErr == nil {
			state.hookErr = err
		}
	})
}

// runCollector visits url on a separate goroutine so a canceled context
// releases the caller even while the request is still bounded by its timeout.
// The state is only read after the visit goroutine has finished.
func (p *Prober) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("collector panic: %v", r)
			}
		}()
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errProbeCanceled, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func (p *Prober) classify(rawURL string, state *probeState, err error) linkcheck.ProbeOutcome {
	if err != nil {
		switch classifyError(err) {
		case linkcheck.ClassTimeout:
			return linkcheck.ProbeOutcome{
				URL:    rawURL,
				Reason: fmt.Sprintf("timed out after %s: %v", p.cfg.Timeout, err),
				Title:  linkcheck.TitleTimedOut,
				Class:  linkcheck.ClassTimeout,
			}
		case linkcheck.ClassTransport:
			return linkcheck.ProbeOutcome{
				URL:    rawURL,
				Reason: fmt.Sprintf("request failed: %v", err),
				Title:  linkcheck.TitleTransport,
				Class:  linkcheck.ClassTransport,
			}
		default:
			return problemOutcome(rawURL, err)
		}
	}

	if state.statusCode == 0 {
		return problemOutcome(rawURL, fmt.Errorf("no response received"))
	}

	outcome := linkcheck.ProbeOutcome{
		URL:        rawURL,
		StatusCode: state.statusCode,
		Reason:     reasonPhrase(state.statusCode),
		Title:      state.title,
		Class:      linkcheck.ClassOK,
	}
	if state.statusCode < 200 || state.statusCode > 299 {
		outcome.Class = linkcheck.ClassHTTPError
		return outcome
	}
	if !state.titleSeen {
		outcome.Title = linkcheck.TitleMissing
	}
	return outcome
}

func problemOutcome(rawURL string, err error) linkcheck.ProbeOutcome {
	return linkcheck.ProbeOutcome{
		URL:    rawURL,
		Reason: fmt.Sprintf("unexpected error: %v", err),
		Title:  linkcheck.TitleProblem,
		Class:  linkcheck.ClassProblem,
	}
}

func reasonPhrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

func newHTTPTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
