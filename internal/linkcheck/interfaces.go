package linkcheck

import (
	"context"
	"iter"
	"time"
)

// Prober fetches a URL and classifies the result. Implementations never
// return an error; every failure is folded into the outcome.
type Prober interface {
	Probe(ctx context.Context, rawURL string) ProbeOutcome
}

// ResultStore persists records for successfully probed links.
type ResultStore interface {
	Append(rec Record) error
	Flush() error
	Close() error
}

// OverflowSink collects links that need another attempt.
type OverflowSink interface {
	Record(link string, statusCode int) error
}

// Checkpoint stamps the last known progress of a run.
type Checkpoint interface {
	Stamp(count int) error
	Done() error
}

// LinkExtractor yields the absolute http(s) links found in a document.
type LinkExtractor interface {
	Links(path string) (iter.Seq[string], error)
}

// RecordMirror receives a copy of every recorded row (optional).
type RecordMirror interface {
	Mirror(ctx context.Context, rec Record) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
