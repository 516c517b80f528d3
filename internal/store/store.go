package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/erdsync/internal/diagram"
)

// ErrNotFound is returned when a diagram id is not in the store.
var ErrNotFound = errors.New("diagram not found")

// DiagramStore is the backing store contract.
type DiagramStore interface {
	GetDiagram(ctx context.Context, id string) (diagram.Diagram, error)
	ListDiagrams(ctx context.Context) ([]Summary, error)
	SaveDiagram(ctx context.Context, d diagram.Diagram) error
	DeleteDiagram(ctx context.Context, id string) error
	GetConfig(ctx context.Context) (Config, error)
	UpdateConfig(ctx context.Context, cfg Config) error
	Close() error
}

// Summary describes a stored diagram without its payload.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DatabaseType string    `json:"databaseType"`
	Tables       int       `json:"tables"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Config is the global store configuration.
type Config struct {
	DefaultDiagramID string `json:"defaultDiagramId"`
}

// ConfigKeyDefaultDiagram is the config row holding the default diagram id.
const ConfigKeyDefaultDiagram = "default_diagram_id"

// record is a snapshot ready to be written.
type record struct {
	summary Summary
	payload string
}

// Encode prepares d for storage: a summary row and the canonical JSON
// payload. Zero timestamps are filled with now.
func Encode(d diagram.Diagram, now time.Time) (Summary, string, error) {
	rec, err := encode(d, now)
	return rec.summary, rec.payload, err
}

func encode(d diagram.Diagram, now time.Time) (record, error) {
	if d.ID == "" {
		return record{}, errors.New("encode diagram: empty id")
	}
	data, err := diagram.MarshalCanonical(d)
	if err != nil {
		return record{}, fmt.Errorf("encode diagram %s: %w", d.ID, err)
	}
	sum, err := diagram.Checksum(d)
	if err != nil {
		return record{}, fmt.Errorf("encode diagram %s: %w", d.ID, err)
	}
	created, updated := d.CreatedAt, d.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	if created.IsZero() {
		created = updated
	}
	return record{
		summary: Summary{
			ID:           d.ID,
			Name:         d.Name,
			DatabaseType: d.DatabaseType,
			Tables:       len(d.Tables),
			Checksum:     sum,
			CreatedAt:    created.UTC(),
			UpdatedAt:    updated.UTC(),
		},
		payload: string(data),
	}, nil
}

// Decode parses a stored payload and restores its timestamps.
func Decode(payload string, created, updated time.Time) (diagram.Diagram, error) {
	var d diagram.Diagram
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return diagram.Diagram{}, fmt.Errorf("decode diagram: %w", err)
	}
	d.CreatedAt = created.UTC()
	d.UpdatedAt = updated.UTC()
	return d, nil
}
