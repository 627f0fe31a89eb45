package linkcheck

import (
	"time"
)

// SchemaTag marks every row written by this tool, the header included. The
// two-digit groups encode the sheet layout version.
const SchemaTag = "#01#01#01#"

// SchemaVersion is the layout version encoded in SchemaTag.
const SchemaVersion = 1

// DefaultGroup is the classification bucket used for recorded links.
const DefaultGroup = "UNCLASSIFIED"

// TimestampLayout renders times at one-second resolution, e.g. 2024-05-01-13-04-59.
const TimestampLayout = "2006-01-02-15-04-05"

// Header holds the canonical column titles that follow SchemaTag in row one.
var Header = []string{"Group", "Result code", "Reason", "Link", "Title", "Date entered"}

// OutcomeClass groups probe results for routing, logging and metrics.
type OutcomeClass string

// Supported outcome classes.
const (
	ClassOK        OutcomeClass = "ok"
	ClassHTTPError OutcomeClass = "http_error"
	ClassTimeout   OutcomeClass = "timeout"
	ClassTransport OutcomeClass = "transport"
	ClassProblem   OutcomeClass = "problem"
)

// Title placeholders for outcomes that carry no usable page title.
const (
	TitleTimedOut  = "TIMED OUT"
	TitleTransport = "POSSIBLE TIMEOUT / RETRIES EXCEEDED"
	TitleProblem   = "PROBLEM"
	TitleMissing   = "NO TITLE"
)

// ProbeOutcome is the classified result of fetching one link.
type ProbeOutcome struct {
	URL string
	// StatusCode is 0 when no HTTP response was obtained.
	StatusCode int
	Reason     string
	Title      string
	Class      OutcomeClass
	// HeadersAfter is the time until response headers arrived; zero if they never did.
	HeadersAfter time.Duration
	Total        time.Duration
}

// Recordable reports whether the outcome belongs in the result store.
// Only an exact 200 qualifies; other 2xx codes go to the overflow list.
func (o ProbeOutcome) Recordable() bool {
	return o.StatusCode == 200
}

// Record is one persisted row of the result store.
type Record struct {
	Group      string
	StatusCode int
	Reason     string
	Link       string
	Title      string
	EnteredAt  time.Time
}

// NewRecord builds a Record from a probe outcome.
func NewRecord(group string, outcome ProbeOutcome, at time.Time) Record {
	if group == "" {
		group = DefaultGroup
	}
	return Record{
		Group:      group,
		StatusCode: outcome.StatusCode,
		Reason:     outcome.Reason,
		Link:       outcome.URL,
		Title:      outcome.Title,
		EnteredAt:  at,
	}
}

// Row renders the record as the seven cell values written to the sheet.
func (r Record) Row() []any {
	return []any{
		SchemaTag,
		r.Group,
		r.StatusCode,
		r.Reason,
		r.Link,
		r.Title,
		FormatTimestamp(r.EnteredAt),
	}
}

// FormatTimestamp formats t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
