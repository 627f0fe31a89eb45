package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/app"
	"github.com/JakeFAU/xllinks/internal/clock/system"
	"github.com/JakeFAU/xllinks/internal/config"
	"github.com/JakeFAU/xllinks/internal/linkcheck"
	"github.com/JakeFAU/xllinks/internal/manifest"
	"github.com/JakeFAU/xllinks/internal/store/xlsx"
)

var fixedAt = time.Date(2024, 5, 1, 13, 4, 59, 0, time.Local)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Probe.TimeoutSeconds = 2
	return cfg
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Hi</title></head></html>"))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type workspace struct {
	dir      string
	manifest string
	workbook string
}

func newWorkspace(t *testing.T, site string) workspace {
	t.Helper()
	dir := t.TempDir()
	doc := filepath.Join(dir, "page.html")
	html := fmt.Sprintf(`<html><body><a href="%[1]s/good">g</a><a href="/local">l</a><a href="%[1]s/bad">b</a></body></html>`, site)
	require.NoError(t, os.WriteFile(doc, []byte(html), 0o644))
	lnx := filepath.Join(dir, "links.lnx")
	body := doc + ",first\n" + filepath.Join(dir, "notes.txt") + "\n"
	require.NoError(t, os.WriteFile(lnx, []byte(body), 0o644))
	return workspace{dir: dir, manifest: lnx, workbook: filepath.Join(dir, "out.xlsx")}
}

func TestRun_RecordsGoodAndOverflowsBad(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ws := newWorkspace(t, srv.URL)
	a := app.New(testConfig(t), zap.NewNop(), app.WithClock(system.Fixed{At: fixedAt}))

	summary, err := a.Run(context.Background(), app.Args{Manifest: ws.manifest, Workbook: ws.workbook, Sheet: "Links"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Recorded)
	assert.Equal(t, 1, summary.Overflowed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Flushes)

	f, err := excelize.OpenFile(ws.workbook)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Links")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, append([]string{linkcheck.SchemaTag}, linkcheck.Header...), rows[0])
	assert.Equal(t, []string{linkcheck.SchemaTag, linkcheck.DefaultGroup, "200", "OK", srv.URL + "/good", "Hi", "2024-05-01-13-04-59"}, rows[1])

	overflowData, err := os.ReadFile(filepath.Join(ws.dir, "unprocessed.lnx"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/bad 404\n", string(overflowData))

	stampData, err := os.ReadFile(filepath.Join(ws.dir, "stamp"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01-13-04-59 DONE\n", string(stampData))
}

func TestRun_ForeignSheetIsFatalButStampsDone(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ws := newWorkspace(t, srv.URL)

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Budget"))
	require.NoError(t, f.SaveAs(ws.workbook))
	require.NoError(t, f.Close())
	before, err := os.ReadFile(ws.workbook)
	require.NoError(t, err)

	a := app.New(testConfig(t), zap.NewNop(), app.WithClock(system.Fixed{At: fixedAt}))
	_, err = a.Run(context.Background(), app.Args{Manifest: ws.manifest, Workbook: ws.workbook, Sheet: "Sheet1"})
	require.ErrorIs(t, err, xlsx.ErrSchemaMismatch)
	assert.True(t, app.IsFatal(err))

	after, err := os.ReadFile(ws.workbook)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stampData, err := os.ReadFile(filepath.Join(ws.dir, "stamp"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01-13-04-59 DONE\n", string(stampData))
	_, err = os.Stat(filepath.Join(ws.dir, "unprocessed.lnx"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_RejectsNonManifest(t *testing.T) {
	t.Parallel()

	a := app.New(testConfig(t), zap.NewNop())
	_, err := a.Run(context.Background(), app.Args{Manifest: "links.txt", Workbook: "out.xlsx", Sheet: "S"})
	require.ErrorIs(t, err, manifest.ErrNotManifest)
	assert.True(t, app.IsFatal(err))
}

func TestRun_MissingManifestStillClosesStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workbook := filepath.Join(dir, "out.xlsx")
	a := app.New(testConfig(t), zap.NewNop(), app.WithClock(system.Fixed{At: fixedAt}))

	_, err := a.Run(context.Background(), app.Args{Manifest: filepath.Join(dir, "absent.lnx"), Workbook: workbook, Sheet: "Links"})
	require.Error(t, err)
	assert.False(t, app.IsFatal(err))

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()
	a1, err := f.GetCellValue("Links", "A1")
	require.NoError(t, err)
	assert.Equal(t, linkcheck.SchemaTag, a1)

	stampData, err := os.ReadFile(filepath.Join(dir, "stamp"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(stampData), " DONE\n"))
}

func TestRun_CanceledContextStopsBeforeLinks(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ws := newWorkspace(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := app.New(testConfig(t), zap.NewNop(), app.WithClock(system.Fixed{At: fixedAt}))
	summary, err := a.Run(ctx, app.Args{Manifest: ws.manifest, Workbook: ws.workbook, Sheet: "Links"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Processed)

	stampData, err := os.ReadFile(filepath.Join(ws.dir, "stamp"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01-13-04-59 DONE\n", string(stampData))
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ws := newWorkspace(t, srv.URL)
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(ws.dir, "xllinks.prom")

	a := app.New(cfg, zap.NewNop())
	require.NotEmpty(t, a.RunID())
	_, err := a.Run(context.Background(), app.Args{Manifest: ws.manifest, Workbook: ws.workbook, Sheet: "Links"})
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "xllinks_records_total 1")
	assert.Contains(t, text, "xllinks_overflow_total 1")
	assert.Contains(t, text, `xllinks_store_flushes_total{reason="final"} 1`)
}
