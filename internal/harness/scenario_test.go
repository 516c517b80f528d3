package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/drag_into_area.yaml")
	require.NoError(t, err)

	assert.Equal(t, "drag_into_area", s.Name)
	require.NotNil(t, s.Diagram)
	assert.Equal(t, "shop", s.Diagram.ID)
	assert.Len(t, s.Diagram.Tables, 3)
	require.Len(t, s.Steps, 2)
	require.NotNil(t, s.Steps[0].Drag)
	assert.Equal(t, "users", s.Steps[0].Drag.ID)
	assert.Equal(t, 420.0, s.Steps[0].Drag.To.X)
	assert.Equal(t, 600*time.Millisecond, s.Steps[1].Advance.Std())
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_InlineDiagram(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: inline
description: inline diagram
diagram:
  id: d
  name: D
  databaseType: postgresql
  tables:
    - {id: t1, name: t1, x: 0, y: 0, fields: [{id: f1, name: id, type: int}]}
steps:
  - filter:
      schemaIds: [public]
assertions:
  - type: writes
    count: 0
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.NotNil(t, s.Steps[0].Filter)
	assert.Equal(t, []string{"public"}, s.Steps[0].Filter.SchemaIDs)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingDiagramFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: broken
description: fixture does not exist
diagram_file: nowhere.yaml
steps:
  - advance: 1s
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read diagram file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: misspelled key
diagram_file: ../fixtures/shop.yaml
stepz: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	fixture, err := filepath.Abs("testdata/fixtures/shop.yaml")
	require.NoError(t, err)
	head := "diagram_file: " + fixture + "\n"

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: head + "description: d\nsteps:\n  - advance: 1s\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: head + "name: n\nsteps:\n  - advance: 1s\n",
			wantErr: "description is required",
		},
		{
			name:    "missing diagram",
			content: "name: n\ndescription: d\nsteps:\n  - advance: 1s\n",
			wantErr: "diagram or diagram_file is required",
		},
		{
			name:    "no steps",
			content: head + "name: n\ndescription: d\nsteps: []\n",
			wantErr: "steps list is required",
		},
		{
			name:    "two gestures in one step",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: 1s\n    select: {id: users, selected: true}\n",
			wantErr: "exactly one gesture per step, got 2",
		},
		{
			name:    "drag without id",
			content: head + "name: n\ndescription: d\nsteps:\n  - drag: {to: {x: 1, y: 1}}\n",
			wantErr: "drag requires id",
		},
		{
			name:    "connect without handle",
			content: head + "name: n\ndescription: d\nsteps:\n  - connect: {from: users}\n",
			wantErr: "connect requires from and handle",
		},
		{
			name:    "empty remove",
			content: head + "name: n\ndescription: d\nsteps:\n  - remove: {}\n",
			wantErr: "remove requires ids or edge_ids",
		},
		{
			name:    "bad duration",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: soon\n",
			wantErr: "invalid duration",
		},
		{
			name:    "unknown assertion",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: 1s\nassertions:\n  - type: vibes\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "count missing",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: 1s\nassertions:\n  - type: writes\n",
			wantErr: "writes requires count",
		},
		{
			name:    "position missing coordinates",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: 1s\nassertions:\n  - type: position\n    id: users\n",
			wantErr: "position requires id, x and y",
		},
		{
			name:    "overlap without expectation",
			content: head + "name: n\ndescription: d\nsteps:\n  - advance: 1s\nassertions:\n  - type: overlap\n",
			wantErr: "overlap requires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
