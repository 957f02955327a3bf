package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
)

type stubStage struct {
	name  string
	batch *Batch
	err   error
	delay time.Duration
	calls int32
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Fetch(ctx context.Context) (*Batch, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.batch, s.err
}

func TestZip(t *testing.T) {
	rows := Zip([][]string{
		{"\ufeffFecha", " Hora ", "Nombre", "Apellidos"},
		{"15/01/2025", "09:00", "María"},
		{"", " ", ""},
		{"16/01/2025", "10:00", "Carlos", "Ruiz", "extra"},
	})

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[0]["Fecha"]; got != "15/01/2025" {
		t.Fatalf("expected BOM-stripped Fecha column, got %q", got)
	}
	if v, ok := rows[0]["Apellidos"]; !ok || v != "" {
		t.Fatalf("expected missing trailing cell to be empty, got %q (%v)", v, ok)
	}
	if got := rows[1]["Hora"]; got != "10:00" {
		t.Fatalf("expected trimmed header name, got %q", got)
	}
	if len(rows[1]) != 4 {
		t.Fatalf("expected cells past the header to be ignored, got %d fields", len(rows[1]))
	}

	if Zip(nil) != nil {
		t.Fatal("expected nil for an empty matrix")
	}
	if got := Zip([][]string{{"Fecha", "Hora"}}); len(got) != 0 {
		t.Fatalf("expected header-only matrix to give no rows, got %d", len(got))
	}
}

func TestSheetsCSVEndToEnd(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spreadsheets/d/sheet-1/gviz/tq" {
			t.Fatalf("unexpected request: %s", r.URL.String())
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte("Fecha,Hora,Nombre,Apellidos,EstadoCita\n15/01/2025,09:00,María,González,Planificada\n"))
	}))
	defer ts.Close()

	stage := NewSheetsCSV(ts.Client(), ts.URL, "sheet-1", "Hoja 1")
	batch, err := stage.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if !strings.Contains(gotQuery, "tqx=out%3Acsv") || !strings.Contains(gotQuery, "sheet=Hoja+1") {
		t.Fatalf("unexpected query %q", gotQuery)
	}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(conv.Appointments))
	}
	a := conv.Appointments[0]
	if a.Date != "2025-01-15" || a.Time != "09:00" {
		t.Fatalf("expected 2025-01-15 09:00, got %s %s", a.Date, a.Time)
	}
	if a.Status != appointment.StatusScheduled {
		t.Fatalf("expected scheduled, got %q", a.Status)
	}
	if a.PatientName != "María González" {
		t.Fatalf("expected patient name %q, got %q", "María González", a.PatientName)
	}
	if a.PatientID != "patient_maría_gonzález" {
		t.Fatalf("expected name slug patient id, got %q", a.PatientID)
	}
	if a.Treatment != appointment.DefaultTreatment {
		t.Fatalf("expected default treatment, got %q", a.Treatment)
	}
	if a.ID == "" {
		t.Fatal("expected a generated id")
	}

	again := NewAdapter(zap.NewNop()).Convert(batch)
	if again.Appointments[0].ID != a.ID {
		t.Fatalf("expected generated id to be stable, got %q and %q", a.ID, again.Appointments[0].ID)
	}
}

func TestSheetsCSVRejectsSignInPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>Sign in</html>"))
	}))
	defer ts.Close()

	_, err := NewSheetsCSV(ts.Client(), ts.URL, "x", "Hoja 1").Fetch(context.Background())
	if !errors.Is(err, ErrNotPublic) {
		t.Fatalf("expected ErrNotPublic, got %v", err)
	}
}

func TestSheetsCSVRejectsOversizedBody(t *testing.T) {
	const row = "15/01/2025,09:00,María,González,Planificada\n"
	var body strings.Builder
	body.WriteString("Fecha,Hora,Nombre,Apellidos,EstadoCita\n")
	for body.Len() <= maxBody {
		body.WriteString(row)
	}
	body.WriteString("16/01/2025,10:00,Alejandro,Pérez,Planificada\n")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body.String()))
	}))
	defer ts.Close()

	stage := NewSheetsCSV(ts.Client(), ts.URL, "sheet-1", "")
	if _, err := stage.Fetch(context.Background()); !errors.Is(err, ErrOversizedBody) {
		t.Fatalf("expected ErrOversizedBody, got %v", err)
	}

	fallback := &stubStage{name: NameFile, batch: &Batch{Format: FormatSheet, Rows: []Row{{"Fecha": "x"}}}}
	out := NewChain(zap.NewNop(), nil, 10*time.Second, stage, fallback).Fetch(context.Background())
	if out.Batch == nil || out.Batch.Source != NameFile {
		t.Fatalf("expected the chain to fall through to the file stage, got %+v", out.Batch)
	}
}

func TestSheetsJSON(t *testing.T) {
	payload := `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","status":"ok","table":{"cols":[{"id":"A","label":"Fecha","type":"date"},{"id":"B","label":"Hora","type":"number"},{"id":"C","label":"Nombre","type":"string"},{"id":"D","label":"EstadoCita","type":"string"}],"rows":[{"c":[{"v":"Date(2025,0,15)","f":"15/01/2025"},{"v":0.375},{"v":"Ana"},null]}]}});`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tqx") != "out:json" {
			t.Fatalf("unexpected tqx %q", r.URL.Query().Get("tqx"))
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer ts.Close()

	batch, err := NewSheetsJSON(ts.Client(), ts.URL, "x", "Hoja 1").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(batch.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(batch.Rows))
	}
	r := batch.Rows[0]
	if r["Fecha"] != "15/01/2025" || r["Hora"] != "0.375" || r["Nombre"] != "Ana" || r["EstadoCita"] != "" {
		t.Fatalf("unexpected row %v", r)
	}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 || conv.Appointments[0].Time != "09:00" {
		t.Fatalf("expected one appointment at 09:00, got %+v", conv.Appointments)
	}
	if conv.Appointments[0].Status != appointment.StatusUnknown {
		t.Fatalf("expected unknown status for an empty cell, got %q", conv.Appointments[0].Status)
	}
}

func TestParseGVizError(t *testing.T) {
	_, err := ParseGViz([]byte(`setResponse({"status":"error","errors":[{"reason":"access_denied","message":"Access denied"}]});`))
	if err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("expected access_denied error, got %v", err)
	}

	if _, err := ParseGViz([]byte("not gviz")); err == nil {
		t.Fatal("expected error for a payload without setResponse")
	}
}

func TestSheetsAPI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Hoja 1!A1:E2","values":[["Fecha","Hora","Nombre","Apellidos","EstadoCita"],["15/01/2025","09:00","María","González","Finalizada"]]}`))
	}))
	defer ts.Close()

	batch, err := NewSheetsAPI(ts.Client(), ts.URL, "x", "Hoja 1", "secret").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 || conv.Appointments[0].Status != appointment.StatusCompleted {
		t.Fatalf("expected one completed appointment, got %+v", conv.Appointments)
	}

	_, err = NewSheetsAPI(ts.Client(), ts.URL, "x", "Hoja 1", "wrong").Fetch(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if strings.Contains(err.Error(), "wrong") {
		t.Fatalf("expected api key to be redacted, got %q", err.Error())
	}
}

func TestBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/appointments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"appointments":[{"Registro":2001,"Fecha":"2025-02-03T00:00:00.000Z","Hora":34200,"Nombre":"Luis","Apellidos":"Gil","IdSitC":5,"FechaAlta":"a","CitMod":"b"}],"metadata":{"total":1}}`))
	}))
	defer ts.Close()

	batch, err := NewBackend(ts.Client(), ts.URL+"/").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if batch.Format != FormatSQL {
		t.Fatalf("expected sql format, got %q", batch.Format)
	}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(conv.Appointments))
	}
	a := conv.Appointments[0]
	if a.ID != "2001" || a.Date != "2025-02-03" || a.Time != "09:30" {
		t.Fatalf("unexpected appointment %+v", a)
	}
	if a.Status != appointment.StatusCompleted || a.SourceStatus != "Finalizada" {
		t.Fatalf("expected completed/Finalizada, got %q/%q", a.Status, a.SourceStatus)
	}
}

func TestAdapterDropsBadRows(t *testing.T) {
	batch := &Batch{Source: "test", Format: FormatSheet, Rows: []Row{
		{"Fecha": "15/01/2025", "Hora": "09:00", "Nombre": "Ana"},
		{"Fecha": "", "Hora": "09:00", "Nombre": "Ana"},
		{"Fecha": "15/01/2025", "Hora": "09:00", "Nombre": " "},
		{"Fecha": "31/02/2025", "Hora": "09:00", "Nombre": "Ana"},
		{"Fecha": "15/01/2025", "Hora": "luego", "Nombre": "Ana"},
	}}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 || conv.Dropped != 4 {
		t.Fatalf("expected 1 kept and 4 dropped, got %d and %d", len(conv.Appointments), conv.Dropped)
	}
}

func TestAdapterSQLTexto(t *testing.T) {
	batch := &Batch{Format: FormatSQL, Rows: []Row{
		{"IdCita": "77", "Texto": "Ruiz Martín, Carlos", "Fecha": "2025-01-16", "Hora": "37800", "IdSitC": "7"},
	}}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(conv.Appointments))
	}
	a := conv.Appointments[0]
	if a.GivenName != "Carlos" || a.FamilyName != "Ruiz Martín" || a.PatientName != "Carlos Ruiz Martín" {
		t.Fatalf("unexpected names %q / %q / %q", a.GivenName, a.FamilyName, a.PatientName)
	}
	if a.Time != "10:30" || a.Status != appointment.StatusScheduled || a.SourceStatus != "Confirmada" {
		t.Fatalf("unexpected appointment %+v", a)
	}
	if a.StatusColor != "#3B82F6" {
		t.Fatalf("expected scheduled colour, got %q", a.StatusColor)
	}
}

func TestAdapterSQLHoraIntegerIsSeconds(t *testing.T) {
	batch := &Batch{Format: FormatSQL, Rows: []Row{
		{"IdCita": "1", "Texto": "Gil, Ana", "Fecha": "2025-01-16", "Hora": "10", "IdSitC": "0"},
		{"IdCita": "2", "Texto": "Gil, Ana", "Fecha": "2025-01-16", "Hora": "09:15", "IdSitC": "0"},
		{"IdCita": "3", "Texto": "Gil, Ana", "Fecha": "2025-01-16", "Hora": "9.5", "IdSitC": "0"},
	}}

	conv := NewAdapter(zap.NewNop()).Convert(batch)
	if len(conv.Appointments) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(conv.Appointments))
	}
	want := map[string]string{"1": "00:00", "2": "09:15", "3": "09:30"}
	for _, a := range conv.Appointments {
		if a.Time != want[a.ID] {
			t.Fatalf("expected %s for %s, got %s", want[a.ID], a.ID, a.Time)
		}
	}
}

func TestMockBatchConverts(t *testing.T) {
	conv := NewAdapter(zap.NewNop()).Convert(MockBatch())
	if len(conv.Appointments) != 5 || conv.Dropped != 0 {
		t.Fatalf("expected 5 mock appointments, got %d (dropped %d)", len(conv.Appointments), conv.Dropped)
	}
	edited := 0
	for _, a := range conv.Appointments {
		if !a.LooksNew() {
			edited++
		}
	}
	if edited != 2 {
		t.Fatalf("expected 2 edited mock appointments, got %d", edited)
	}
}

func TestChainFallsBackToMock(t *testing.T) {
	csvStage := &stubStage{name: NameSheetsCSV, err: errors.New("connection refused")}
	jsonStage := &stubStage{name: NameSheetsJSON, err: &StatusError{URL: "x", Code: 500}}

	out := NewChain(zap.NewNop(), nil, time.Second, csvStage, jsonStage).Fetch(context.Background())

	if !out.Degraded {
		t.Fatal("expected degraded outcome")
	}
	if out.Batch.Source != NameMock || len(out.Batch.Rows) != 5 {
		t.Fatalf("expected mock batch, got %s with %d rows", out.Batch.Source, len(out.Batch.Rows))
	}
	if !strings.Contains(out.Error(), "connection refused") || !strings.Contains(out.Error(), "sheets_json") {
		t.Fatalf("expected joined stage errors, got %q", out.Error())
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(out.Attempts))
	}
}

func TestChainUsesFirstWorkingStage(t *testing.T) {
	failing := &stubStage{name: NameSheetsCSV, err: errors.New("boom")}
	empty := &stubStage{name: NameSheetsJSON, err: ErrEmptyBatch}
	good := &stubStage{name: NameFile, batch: &Batch{Format: FormatSheet, Rows: []Row{{"Fecha": "x"}}}}
	never := &stubStage{name: NameBackend, batch: &Batch{Format: FormatSQL}}

	out := NewChain(zap.NewNop(), nil, time.Second, failing, empty, good, never).Fetch(context.Background())

	if out.Degraded || out.Err != nil {
		t.Fatalf("expected healthy outcome, got error %v", out.Err)
	}
	if out.Batch.Source != NameFile {
		t.Fatalf("expected file batch, got %q", out.Batch.Source)
	}
	if atomic.LoadInt32(&never.calls) != 0 {
		t.Fatal("expected stages after the winner not to be called")
	}
}

func TestChainStageTimeout(t *testing.T) {
	slow := &stubStage{name: NameSheetsCSV, delay: time.Second, batch: &Batch{Format: FormatSheet}}
	good := &stubStage{name: NameFile, batch: &Batch{Format: FormatSheet}}

	start := time.Now()
	out := NewChain(zap.NewNop(), nil, 20*time.Millisecond, slow, good).Fetch(context.Background())

	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("expected slow stage to be cut off by its timeout")
	}
	if out.Batch.Source != NameFile {
		t.Fatalf("expected fallback to file, got %q", out.Batch.Source)
	}
	if !errors.Is(out.Attempts[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", out.Attempts[0].Err)
	}
}

func TestChainRejectsNilAndUnknownFormat(t *testing.T) {
	nilBatch := &stubStage{name: "a"}
	badFormat := &stubStage{name: "b", batch: &Batch{Format: "xml"}}

	out := NewChain(zap.NewNop(), nil, time.Second, nilBatch, badFormat).Fetch(context.Background())
	if !out.Degraded {
		t.Fatal("expected degraded outcome")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &stubStage{name: NameBackend, err: errors.New("down")}
	b := NewBreaker(inner, 2, time.Minute, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := b.Fetch(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := b.Fetch(context.Background()); err == nil {
		t.Fatal("expected open breaker to fail fast")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 2 {
		t.Fatalf("expected the open breaker to skip the stage, got %d calls", got)
	}
	if b.State() != "open" {
		t.Fatalf("expected open state, got %q", b.State())
	}
}

func TestChainStageStates(t *testing.T) {
	down := NewBreaker(&stubStage{name: NameBackend, err: errors.New("down")}, 1, time.Minute, zap.NewNop())
	c := NewChain(zap.NewNop(), nil, time.Second, down, Mock{})

	c.Fetch(context.Background())

	states := c.StageStates()
	if states[NameBackend] != "open" || states[NameMock] != "closed" {
		t.Fatalf("unexpected stage states: %v", states)
	}
}

func TestBreakerIgnoresEmptyBatches(t *testing.T) {
	inner := &stubStage{name: NameSheetsCSV, err: ErrEmptyBatch}
	b := NewBreaker(inner, 1, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, _ = b.Fetch(context.Background())
	}
	if got := atomic.LoadInt32(&inner.calls); got != 3 {
		t.Fatalf("expected every call to reach the stage, got %d", got)
	}
}

func TestFileSaveAndFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments_data.json")
	f := NewFile(path, 10)

	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for a missing cache file")
	}

	src := &Batch{Source: NameSheetsCSV, Format: FormatSheet, Rows: []Row{
		{"Fecha": "15/01/2025", "Hora": "09:00", "Nombre": "Ana"},
	}}
	if err := f.Save(src, ServerInfo{Server: "GABINETE2", Database: "GELITE", Connected: true}); err != nil {
		t.Fatalf("save error: %v", err)
	}

	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if got.Source != NameFile || got.Format != FormatSheet || len(got.Rows) != 1 || got.Rows[0]["Nombre"] != "Ana" {
		t.Fatalf("unexpected batch %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestFileRejectsOversizedWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments_data.json")
	f := NewFile(path, 2)

	good := &Batch{Format: FormatSQL, Rows: []Row{{"Registro": "1"}}}
	if err := f.Save(good, ServerInfo{}); err != nil {
		t.Fatalf("save error: %v", err)
	}
	before, _ := os.ReadFile(path)

	tooMany := &Batch{Format: FormatSQL, Rows: []Row{{}, {}, {}}}
	if err := f.Save(tooMany, ServerInfo{}); !errors.Is(err, ErrOversizedWrite) {
		t.Fatalf("expected ErrOversizedWrite for rows, got %v", err)
	}
	tooLong := &Batch{Format: FormatSQL, Rows: []Row{{"Notas": strings.Repeat("a", maxFieldLength+1)}}}
	if err := f.Save(tooLong, ServerInfo{}); !errors.Is(err, ErrOversizedWrite) {
		t.Fatalf("expected ErrOversizedWrite for field, got %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("expected rejected writes to leave the cache file untouched")
	}
}

func TestFileReadsLegacyProxyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments_data.json")
	legacy := `{"timestamp":"2025-01-11T10:00:00.000Z","appointments":[{"Registro":"1001","Fecha":"2025-01-15","Hora":"09:00","Nombre":"María","EstadoCita":"Planificada"}],"total_count":1,"server_info":{"server":"GABINETE2\\INFOMED","database":"GELITE","connected":true}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewFile(path, 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if got.Format != FormatSQL {
		t.Fatalf("expected legacy file to be read as sql rows, got %q", got.Format)
	}
}
