package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := map[int]string{0: "none", 200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 99: "other", 700: "other"}
	for code, want := range cases {
		assert.Equal(t, want, StatusClass(code), "code %d", code)
	}
}

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveProbe(linkcheck.ProbeOutcome{StatusCode: 200, Class: linkcheck.ClassOK, HeadersAfter: time.Millisecond, Total: 2 * time.Millisecond})
	r.ObserveProbe(linkcheck.ProbeOutcome{StatusCode: 0, Class: linkcheck.ClassTimeout, Total: time.Second})
	r.ObserveRecorded()
	r.ObserveOverflow()
	r.ObserveFlush(FlushPeriodic)
	r.ObserveFlush(FlushFinal)
	r.ObserveFlush(FlushFinal)
	r.ObserveDocument("skipped")
	r.ObserveWriteError(TargetOverflow)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("ok", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("timeout", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recordedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.overflowTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushesTotal.WithLabelValues(FlushPeriodic)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.flushesTotal.WithLabelValues(FlushFinal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.writeErrorsTotal.WithLabelValues(TargetOverflow)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.headerLatency))
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObserveProbe(linkcheck.ProbeOutcome{})
	r.ObserveRecorded()
	r.ObserveOverflow()
	r.ObserveFlush(FlushFinal)
	r.ObserveDocument("processed")
	r.ObserveWriteError(TargetStore)
	r.MarkCompleted(time.Now())
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveRecorded()
	r.MarkCompleted(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "xllinks.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "xllinks_records_total 1"), text)
	assert.True(t, strings.Contains(text, "xllinks_last_run_completed_timestamp_seconds 1.7e+09"), text)
}
