package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func sampleResult(status models.RunStatus) *models.RunResult {
	r := models.NewRunResult("run-1", "https://ceo.baemin.com", time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))
	r.Status = status
	r.AccessStatus = models.AccessSuccess
	r.PageTitle = "배민외식업광장"
	var slots []models.SlotRecord
	for i := 1; i <= 12; i++ {
		slots = append(slots, models.SlotRecord{
			Index: models.SlotIndex(i),
			Type:  "content_cards",
			Text:  strings.Repeat("카", 70),
			Tag:   "div",
		})
	}
	r.SetSlots(slots)
	var broken []models.BrokenLink
	for i := 0; i < 7; i++ {
		broken = append(broken, models.BrokenLink{
			URL:    fmt.Sprintf("https://ceo.baemin.com/b/%d", i),
			Status: models.HTTPStatus(404),
		})
	}
	r.SetBrokenLinks(20, broken)
	for i := 0; i < 4; i++ {
		r.AddError(fmt.Sprintf("err %d", i))
	}
	return r
}

func TestHeader(t *testing.T) {
	h := Header()
	require.Len(t, h, 30)
	assert.Equal(t, "접근상태", h[4])
	assert.Equal(t, "S01_타입", h[10])
	assert.Equal(t, "S10_내용", h[29])
}

func TestBuildRow(t *testing.T) {
	r := sampleResult(models.StatusSuccess)
	row := BuildRow(r)

	require.Len(t, row, 30)
	assert.Equal(t, "2026-03-02", row[0])
	assert.Equal(t, "09:30:00", row[1])
	assert.Equal(t, "success", row[3])
	assert.Equal(t, "success", row[4])
	assert.Equal(t, 12, row[5])
	assert.Equal(t, 20, row[6])
	assert.Equal(t, 7, row[7])
	assert.Equal(t, 5, len(strings.Split(row[8].(string), ", ")))
	assert.Equal(t, "err 0, err 1, err 2", row[9])
	assert.Equal(t, "content_cards", row[10])
	assert.Len(t, []rune(row[11].(string)), 50)
}

func TestBuildRow_FewSlots(t *testing.T) {
	r := models.NewRunResult("run-2", "https://x.example", time.Now())
	r.Status = models.StatusFailed
	row := BuildRow(r)
	assert.Len(t, row, 10)
	assert.Equal(t, "", row[8])
	assert.Equal(t, "", row[9])
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	r := sampleResult(models.StatusSuccess)
	now := time.Date(2026, 3, 2, 0, 30, 5, 0, time.UTC)

	path, err := WriteArtifact(filepath.Join(dir, "results"), r, now)
	require.NoError(t, err)
	assert.Equal(t, "results_20260302_093005.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "배민외식업광장")

	var back models.RunResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, len(back.Slots), back.TotalSlots)
	assert.Equal(t, len(back.BrokenLinks), back.BrokenLinkCount)
}

type recordingTable struct {
	ensureErr error
	appendErr error
	rows      [][]any
}

func (t *recordingTable) EnsureTable(context.Context, string, []any) error { return t.ensureErr }

func (t *recordingTable) AppendRow(_ context.Context, _ string, values []any) error {
	if t.appendErr != nil {
		return t.appendErr
	}
	t.rows = append(t.rows, values)
	return nil
}

func newTestFinalizer(dir string, table Table) *Finalizer {
	f := NewFinalizer(
		config.OutputConfig{ResultsDir: dir},
		config.SheetConfig{SheetName: "모니터링로그", Timeout: time.Second},
		table,
	)
	f.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestFinalize_ExitCodeIndependentOfSink(t *testing.T) {
	authErr := models.NewMonitorError(models.ErrCodeSinkAuth, "denied", errors.New("403"))
	tables := map[string]Table{
		"no sink":       nil,
		"working sink":  &recordingTable{},
		"auth failure":  &recordingTable{ensureErr: authErr},
		"write failure": &recordingTable{appendErr: errors.New("quota")},
	}
	statuses := map[models.RunStatus]int{
		models.StatusSuccess: 0,
		models.StatusFailed:  1,
		models.StatusBlocked: 1,
		models.StatusError:   1,
	}

	for name, table := range tables {
		for status, want := range statuses {
			t.Run(name+"/"+string(status), func(t *testing.T) {
				dir := t.TempDir()
				code := newTestFinalizer(dir, table).Finalize(context.Background(), sampleResult(status))
				assert.Equal(t, want, code)

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 1, "artifact must be written whatever the sink does")
			})
		}
	}
}

func TestFinalize_RestoresCounts(t *testing.T) {
	r := sampleResult(models.StatusSuccess)
	r.Slots = r.Slots[:3]
	r.BrokenLinks = nil
	table := &recordingTable{}

	newTestFinalizer(t.TempDir(), table).Finalize(context.Background(), r)

	assert.Equal(t, 3, r.TotalSlots)
	assert.Equal(t, 0, r.BrokenLinkCount)
	assert.NotNil(t, r.BrokenLinks)
	require.Len(t, table.rows, 1)
	assert.Equal(t, 3, table.rows[0][5])
}

func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "log.csv")
	c := NewCSV(path)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, c.EnsureTable(ctx, "ignored", Header()))
		require.NoError(t, c.AppendRow(ctx, "ignored", BuildRow(sampleResult(models.StatusSuccess))))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "날짜", records[0][0])
	assert.Equal(t, "12", records[1][5])
}

// fakeSheetsAPI emulates the few Sheets v4 endpoints the table uses.
type fakeSheetsAPI struct {
	mu        sync.Mutex
	titles    []string
	header    map[string]bool
	headerPut int
	appended  [][]any
	deny      bool
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deny {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sid":
		resp := sheets.Spreadsheet{SpreadsheetId: "sid"}
		for _, t := range f.titles {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.titles = append(f.titles, req.Requests[0].AddSheet.Properties.Title)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended = append(f.appended, vr.Values...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		if f.header[sheetOf(path)] {
			_, _ = w.Write([]byte(`{"values":[["날짜"]]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.headerPut++
		f.header[sheetOf(path)] = true
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func sheetOf(path string) string {
	rng := path[strings.Index(path, "/values/")+len("/values/"):]
	if i := strings.Index(rng, "!"); i >= 0 {
		rng = rng[:i]
	}
	return strings.Trim(rng, "'")
}

func newFakeSheets(t *testing.T, api *fakeSheetsAPI) *Sheets {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s, err := newSheets(context.Background(), "sid",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestSheets_EnsureTableIdempotent(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"Sheet1"}, header: map[string]bool{}}
	s := newFakeSheets(t, api)
	ctx := context.Background()

	require.NoError(t, s.EnsureTable(ctx, "모니터링로그", Header()))
	require.NoError(t, s.EnsureTable(ctx, "모니터링로그", Header()))

	assert.Equal(t, []string{"Sheet1", "모니터링로그"}, api.titles)
	assert.Equal(t, 1, api.headerPut)
}

func TestSheets_AppendRow(t *testing.T) {
	api := &fakeSheetsAPI{header: map[string]bool{}}
	s := newFakeSheets(t, api)

	require.NoError(t, s.AppendRow(context.Background(), "모니터링로그", BuildRow(sampleResult(models.StatusSuccess))))
	require.Len(t, api.appended, 1)
	assert.Len(t, api.appended[0], 30)
	assert.Equal(t, "2026-03-02", api.appended[0][0])
}

func TestSheets_PermissionDeniedIsAuthError(t *testing.T) {
	api := &fakeSheetsAPI{deny: true, header: map[string]bool{}}
	s := newFakeSheets(t, api)

	err := s.EnsureTable(context.Background(), "모니터링로그", Header())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSinkAuth, models.CodeOf(err))
	assert.Equal(t, models.Absorb, models.DispositionOf(err))
}

func TestNewSheets_MissingCredentials(t *testing.T) {
	_, err := NewSheets(context.Background(), config.SheetConfig{
		SpreadsheetID:   "sid",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSinkAuth, models.CodeOf(err))
}

func TestOpenTable(t *testing.T) {
	table, err := OpenTable(context.Background(), config.SheetConfig{})
	require.NoError(t, err)
	assert.Nil(t, table)

	table, err = OpenTable(context.Background(), config.SheetConfig{CSVPath: filepath.Join(t.TempDir(), "x.csv")})
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, table)

	table, err = OpenTable(context.Background(), config.SheetConfig{SpreadsheetID: "sid"})
	require.Error(t, err)
	assert.Nil(t, table)
}
