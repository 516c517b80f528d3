// Package storetest holds a behavioral contract shared by every
// store.DiagramStore implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/store"
)

// SampleDiagram returns a small diagram with one of every element.
func SampleDiagram(id string) diagram.Diagram {
	return diagram.Diagram{
		ID:           id,
		Name:         "shop " + id,
		DatabaseType: "postgresql",
		Tables: []diagram.Table{
			{ID: "users", Name: "users", X: 10, Y: 20, Fields: []diagram.Field{
				{ID: "users.id", Name: "id", Type: "bigint", PrimaryKey: true},
			}},
			{ID: "orders", Name: "orders", X: 300, Y: 20, ParentAreaID: "a1", Fields: []diagram.Field{
				{ID: "orders.id", Name: "id", Type: "bigint", PrimaryKey: true},
				{ID: "orders.user_id", Name: "user_id", Type: "bigint"},
			}},
		},
		Relationships: []diagram.Relationship{{
			ID: "r1", Name: "orders_user_id_fk",
			SourceTableID: "orders", SourceFieldID: "orders.user_id",
			TargetTableID: "users", TargetFieldID: "users.id",
			SourceCardinality: diagram.CardinalityMany, TargetCardinality: diagram.CardinalityOne,
		}},
		Areas: []diagram.Area{{ID: "a1", Name: "billing", X: 250, Y: 0, Width: 400, Height: 400}},
		Notes: []diagram.Note{{ID: "n1", Content: "<draft> & notes", X: 0, Y: 500, Width: 100, Height: 80}},
	}
}

// Run exercises the DiagramStore contract. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.DiagramStore) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.GetDiagram(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("save then get", func(t *testing.T) {
		s := open(t)
		d := SampleDiagram("d1")
		d.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveDiagram(ctx, d))

		got, err := s.GetDiagram(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, d.Tables, got.Tables)
		assert.Equal(t, d.Relationships, got.Relationships)
		assert.Equal(t, d.Areas, got.Areas)
		assert.Equal(t, d.Notes, got.Notes)
		assert.True(t, d.UpdatedAt.Equal(got.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(d.UpdatedAt), "zero created_at takes updated_at")

		want, err := diagram.Checksum(d)
		require.NoError(t, err)
		sum, err := diagram.Checksum(got)
		require.NoError(t, err)
		assert.Equal(t, want, sum)
	})

	t.Run("replace keeps created_at", func(t *testing.T) {
		s := open(t)
		d := SampleDiagram("d1")
		d.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		d.UpdatedAt = d.CreatedAt
		require.NoError(t, s.SaveDiagram(ctx, d))

		d.CreatedAt = time.Time{}
		d.UpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		d.Tables[0].X = 999
		require.NoError(t, s.SaveDiagram(ctx, d))

		got, err := s.GetDiagram(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, 999.0, got.Tables[0].X)
		assert.True(t, got.CreatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, got.UpdatedAt.Equal(d.UpdatedAt))
	})

	t.Run("list orders by updated desc", func(t *testing.T) {
		s := open(t)
		base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		for _, c := range []struct {
			id     string
			offset time.Duration
		}{{"old", 0}, {"new", 2 * time.Hour}, {"mid", time.Hour}} {
			d := SampleDiagram(c.id)
			d.UpdatedAt = base.Add(c.offset)
			require.NoError(t, s.SaveDiagram(ctx, d))
		}

		list, err := s.ListDiagrams(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, 2, list[0].Tables)
		assert.Equal(t, "postgresql", list[0].DatabaseType)
		assert.NotEmpty(t, list[0].Checksum)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveDiagram(ctx, SampleDiagram("d1")))
		require.NoError(t, s.UpdateConfig(ctx, store.Config{DefaultDiagramID: "d1"}))

		require.NoError(t, s.DeleteDiagram(ctx, "d1"))
		_, err := s.GetDiagram(ctx, "d1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		cfg, err := s.GetConfig(ctx)
		require.NoError(t, err)
		assert.Empty(t, cfg.DefaultDiagramID, "deleting the default clears it")

		assert.ErrorIs(t, s.DeleteDiagram(ctx, "d1"), store.ErrNotFound)
	})

	t.Run("config", func(t *testing.T) {
		s := open(t)
		cfg, err := s.GetConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, store.Config{}, cfg)

		require.NoError(t, s.UpdateConfig(ctx, store.Config{DefaultDiagramID: "a"}))
		require.NoError(t, s.UpdateConfig(ctx, store.Config{DefaultDiagramID: "b"}))
		cfg, err = s.GetConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", cfg.DefaultDiagramID)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		s := open(t)
		assert.Error(t, s.SaveDiagram(ctx, diagram.Diagram{Name: "anon"}))
	})
}
