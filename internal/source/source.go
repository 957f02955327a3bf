// Package source fetches raw appointment rows from the clinic's data sources
// and converts them into canonical appointments.
//
// Sources are tried as an ordered chain of stages. A stage that fails or
// times out hands over to the next one, and when every stage fails the chain
// serves a fixed demo dataset so a sync pass always has something to show.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Stage names, as used in SYNC_SOURCES, logs and metrics.
const (
	NameSheetsCSV  = "sheets_csv"
	NameSheetsJSON = "sheets_json"
	NameSheetsAPI  = "sheets_api"
	NameBackend    = "backend"
	NameDatabase   = "database"
	NameFile       = "file"
	NameMock       = "mock"
)

// Format tells the adapter which field mapping a batch needs.
type Format string

const (
	// FormatSheet rows use the appointment spreadsheet's column names
	// (Fecha, Hora, Nombre, Apellidos, EstadoCita, ...).
	FormatSheet Format = "sheet"
	// FormatSQL rows use the clinic database export's names
	// (Registro, CitMod, FechaAlta, NumPac, ...).
	FormatSQL Format = "sql"
)

func (f Format) IsValid() bool {
	return f == FormatSheet || f == FormatSQL
}

// Row is one raw source record keyed by column name.
type Row map[string]string

// Get returns the first non-blank value among keys, trimmed.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

type Batch struct {
	Source string
	Format Format
	Rows   []Row
}

type Stage interface {
	Name() string
	Fetch(ctx context.Context) (*Batch, error)
}

var (
	// ErrEmptyBatch means the source answered with no content at all.
	ErrEmptyBatch = errors.New("source returned no rows")
	// ErrNotPublic means the sheet answered with a sign-in page instead of data.
	ErrNotPublic = errors.New("spreadsheet is not shared publicly")
	// ErrOversizedBody means the response did not fit in maxBody and was not
	// parsed, so a cut-off body is never taken for a complete batch.
	ErrOversizedBody = errors.New("source response exceeds size limit")
)

// StatusError is a non-2xx answer from an HTTP source.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// stringify renders a decoded JSON value the way a spreadsheet cell would
// show it.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func rowFromObject(obj map[string]any) Row {
	r := make(Row, len(obj))
	for k, v := range obj {
		r[k] = stringify(v)
	}
	return r
}
