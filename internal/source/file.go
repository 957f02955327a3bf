package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxFieldLength bounds a single cached cell. Anything longer is not an
// appointment field.
const maxFieldLength = 4096

// ErrOversizedWrite rejects a cache write that exceeds the row or field
// limits. The file on disk is left as it was.
var ErrOversizedWrite = errors.New("cache write exceeds size limits")

// ServerInfo identifies where the cached rows came from.
type ServerInfo struct {
	Server    string `json:"server"`
	Database  string `json:"database"`
	Connected bool   `json:"connected"`
}

type cacheFile struct {
	Timestamp    string           `json:"timestamp"`
	Format       Format           `json:"format,omitempty"`
	Source       string           `json:"source,omitempty"`
	Appointments []map[string]any `json:"appointments"`
	TotalCount   int              `json:"total_count"`
	ServerInfo   ServerInfo       `json:"server_info"`
}

// File is the last good batch persisted to disk. As a stage it serves the
// cached rows when every live source is down.
type File struct {
	path    string
	maxRows int
}

func NewFile(path string, maxRows int) *File {
	return &File{path: path, maxRows: maxRows}
}

func (f *File) Name() string { return NameFile }

func (f *File) Path() string { return f.path }

func (f *File) Fetch(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing cache file: %w", err)
	}
	if len(cf.Appointments) == 0 {
		return nil, ErrEmptyBatch
	}

	// Files written by the old clinic proxy carry no format and hold SQL rows.
	format := cf.Format
	if !format.IsValid() {
		format = FormatSQL
	}

	rows := make([]Row, 0, len(cf.Appointments))
	for _, o := range cf.Appointments {
		rows = append(rows, rowFromObject(o))
	}
	return &Batch{Source: NameFile, Format: format, Rows: rows}, nil
}

// Save atomically replaces the cache file with batch.
func (f *File) Save(batch *Batch, info ServerInfo) error {
	if f.maxRows > 0 && len(batch.Rows) > f.maxRows {
		return fmt.Errorf("%w: %d rows, limit %d", ErrOversizedWrite, len(batch.Rows), f.maxRows)
	}

	objs := make([]map[string]any, len(batch.Rows))
	for i, r := range batch.Rows {
		o := make(map[string]any, len(r))
		for k, v := range r {
			if len(v) > maxFieldLength {
				return fmt.Errorf("%w: field %q is %d bytes, limit %d", ErrOversizedWrite, k, len(v), maxFieldLength)
			}
			o[k] = v
		}
		objs[i] = o
	}

	data, err := json.MarshalIndent(cacheFile{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Format:       batch.Format,
		Source:       batch.Source,
		Appointments: objs,
		TotalCount:   len(objs),
		ServerInfo:   info,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
