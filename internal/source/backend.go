package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Backend reads SQL-shaped rows from the clinic's database proxy, which
// answers GET /api/appointments with {"appointments": [...]} or a bare array.
type Backend struct {
	client  *http.Client
	baseURL string
}

func NewBackend(client *http.Client, baseURL string) *Backend {
	return &Backend{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *Backend) Name() string { return NameBackend }

func (b *Backend) Fetch(ctx context.Context) (*Batch, error) {
	body, err := get(ctx, b.client, b.baseURL+"/api/appointments")
	if err != nil {
		return nil, err
	}

	objs, err := decodeObjects(body)
	if err != nil {
		return nil, fmt.Errorf("parsing backend response: %w", err)
	}
	if len(objs) == 0 {
		return nil, ErrEmptyBatch
	}

	rows := make([]Row, 0, len(objs))
	for _, o := range objs {
		rows = append(rows, rowFromObject(o))
	}
	return &Batch{Source: NameBackend, Format: FormatSQL, Rows: rows}, nil
}

func decodeObjects(body []byte) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var objs []map[string]any
		err := json.Unmarshal(body, &objs)
		return objs, err
	}

	var wrapped struct {
		Appointments []map[string]any `json:"appointments"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Appointments, err
}
