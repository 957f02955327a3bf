package source

import (
	"context"
	"fmt"
	"time"
)

// RowReader reads recent appointment rows from the clinic database, already
// flattened to the export column names.
type RowReader interface {
	RecentRows(ctx context.Context, since time.Time, limit int) ([]map[string]string, error)
}

// Database reads the most recently modified appointments straight from the
// clinic database.
type Database struct {
	reader RowReader
	window time.Duration
	limit  int
	now    func() time.Time
}

func NewDatabase(reader RowReader, window time.Duration, limit int) *Database {
	return &Database{reader: reader, window: window, limit: limit, now: time.Now}
}

func (d *Database) Name() string { return NameDatabase }

func (d *Database) Fetch(ctx context.Context) (*Batch, error) {
	raw, err := d.reader.RecentRows(ctx, d.now().Add(-d.window), d.limit)
	if err != nil {
		return nil, fmt.Errorf("reading clinic appointments: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyBatch
	}

	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = Row(r)
	}
	return &Batch{Source: NameDatabase, Format: FormatSQL, Rows: rows}, nil
}
