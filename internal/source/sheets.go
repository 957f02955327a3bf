package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBody bounds how much of a source response is read.
const maxBody = 16 << 20

// SheetsCSV reads the appointment sheet through the public GViz CSV export.
type SheetsCSV struct {
	client  *http.Client
	baseURL string
	id      string
	sheet   string
}

func NewSheetsCSV(client *http.Client, baseURL, spreadsheetID, sheet string) *SheetsCSV {
	return &SheetsCSV{client: client, baseURL: strings.TrimRight(baseURL, "/"), id: spreadsheetID, sheet: sheet}
}

func (s *SheetsCSV) Name() string { return NameSheetsCSV }

func (s *SheetsCSV) URL() string {
	return gvizURL(s.baseURL, s.id, s.sheet, "out:csv")
}

func (s *SheetsCSV) Fetch(ctx context.Context) (*Batch, error) {
	body, err := get(ctx, s.client, s.URL())
	if err != nil {
		return nil, err
	}

	matrix, err := ParseCSV(body)
	if err != nil {
		return nil, err
	}
	if len(matrix) == 0 {
		return nil, ErrEmptyBatch
	}
	return &Batch{Source: NameSheetsCSV, Format: FormatSheet, Rows: Zip(matrix)}, nil
}

// ParseCSV reads a sheet export. Quoting is lenient and rows may have
// different lengths, as GViz trims trailing empty cells.
func ParseCSV(body []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	matrix, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing sheet csv: %w", err)
	}
	return matrix, nil
}

// SheetsJSON reads the same sheet through the GViz JSON endpoint. It needs no
// API key and backs up the CSV export.
type SheetsJSON struct {
	client  *http.Client
	baseURL string
	id      string
	sheet   string
}

func NewSheetsJSON(client *http.Client, baseURL, spreadsheetID, sheet string) *SheetsJSON {
	return &SheetsJSON{client: client, baseURL: strings.TrimRight(baseURL, "/"), id: spreadsheetID, sheet: sheet}
}

func (s *SheetsJSON) Name() string { return NameSheetsJSON }

func (s *SheetsJSON) URL() string {
	return gvizURL(s.baseURL, s.id, s.sheet, "out:json")
}

func (s *SheetsJSON) Fetch(ctx context.Context) (*Batch, error) {
	body, err := get(ctx, s.client, s.URL())
	if err != nil {
		return nil, err
	}

	matrix, err := ParseGViz(body)
	if err != nil {
		return nil, err
	}
	if len(matrix) == 0 {
		return nil, ErrEmptyBatch
	}
	return &Batch{Source: NameSheetsJSON, Format: FormatSheet, Rows: Zip(matrix)}, nil
}

type gvizResponse struct {
	Status string `json:"status"`
	Errors []struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"errors"`
	Table struct {
		Cols []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"cols"`
		Rows []struct {
			C []*struct {
				V any    `json:"v"`
				F string `json:"f"`
			} `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// ParseGViz unwraps a google.visualization.Query.setResponse(...) payload
// into a cell matrix whose first row is the header. Formatted cell values are
// preferred so dates come out as the sheet shows them.
func ParseGViz(body []byte) ([][]string, error) {
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return nil, errors.New("parsing gviz response: no setResponse payload")
	}

	var resp gvizResponse
	if err := json.Unmarshal(body[start+1:end], &resp); err != nil {
		return nil, fmt.Errorf("parsing gviz response: %w", err)
	}
	if resp.Status == "error" {
		msg := "unknown error"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Reason + ": " + resp.Errors[0].Message
		}
		return nil, fmt.Errorf("gviz query failed: %s", msg)
	}

	cols := resp.Table.Cols
	if len(cols) == 0 {
		return nil, nil
	}

	header := make([]string, len(cols))
	labelled := false
	for i, c := range cols {
		header[i] = c.Label
		if c.Label != "" {
			labelled = true
		}
	}

	// Without labels GViz treated the header row as data, so the first data
	// row already holds the column names.
	matrix := make([][]string, 0, len(resp.Table.Rows)+1)
	if labelled {
		matrix = append(matrix, header)
	}
	for _, row := range resp.Table.Rows {
		cells := make([]string, len(cols))
		for i, c := range row.C {
			if i >= len(cells) || c == nil {
				continue
			}
			if c.F != "" {
				cells[i] = c.F
			} else {
				cells[i] = stringify(c.V)
			}
		}
		matrix = append(matrix, cells)
	}
	return matrix, nil
}

// SheetsAPI reads the sheet through the Sheets API v4 values endpoint.
type SheetsAPI struct {
	client  *http.Client
	baseURL string
	id      string
	sheet   string
	apiKey  string
}

func NewSheetsAPI(client *http.Client, baseURL, spreadsheetID, sheet, apiKey string) *SheetsAPI {
	return &SheetsAPI{client: client, baseURL: strings.TrimRight(baseURL, "/"), id: spreadsheetID, sheet: sheet, apiKey: apiKey}
}

func (s *SheetsAPI) Name() string { return NameSheetsAPI }

func (s *SheetsAPI) URL() string {
	q := url.Values{}
	q.Set("key", s.apiKey)
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?%s",
		s.baseURL, url.PathEscape(s.id), url.PathEscape(s.sheet), q.Encode())
}

func (s *SheetsAPI) Fetch(ctx context.Context) (*Batch, error) {
	body, err := get(ctx, s.client, s.URL())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing sheets api response: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, ErrEmptyBatch
	}

	matrix := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = stringify(v)
		}
		matrix[i] = cells
	}
	return &Batch{Source: NameSheetsAPI, Format: FormatSheet, Rows: Zip(matrix)}, nil
}

func gvizURL(base, id, sheet, tqx string) string {
	q := url.Values{}
	q.Set("tqx", tqx)
	q.Set("sheet", sheet)
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?%s", base, url.PathEscape(id), q.Encode())
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, key included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("GET %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: redact(rawURL), Code: resp.StatusCode}
	}
	// Private sheets redirect to an HTML sign-in page with a 200.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return nil, ErrNotPublic
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", redact(rawURL), err)
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrOversizedBody, redact(rawURL), maxBody)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBatch
	}
	return body, nil
}

// redact hides the API key in URLs that end up in errors and logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid url"
	}
	if u.Query().Has("key") {
		u.RawQuery = "key=REDACTED"
	}
	return u.String()
}
