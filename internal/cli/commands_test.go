package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/harness"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func seedStore(t *testing.T) (db string, id string) {
	t.Helper()
	db = filepath.Join(t.TempDir(), "erdsync.db")
	out, err := execute(t, "--db", db, "--format", "json", "seed", "--set-default")
	require.NoError(t, err, out)

	var res SeedResult
	decodeData(t, out, &res)
	require.NotEmpty(t, res.ID)
	assert.True(t, res.Default)
	return db, res.ID
}

func TestSeedListInspect(t *testing.T) {
	db, id := seedStore(t)

	out, err := execute(t, "--db", db, "--format", "json", "list")
	require.NoError(t, err)
	var list ListResult
	decodeData(t, out, &list)
	require.Len(t, list.Diagrams, 1)
	assert.Equal(t, id, list.Diagrams[0].ID)
	assert.True(t, list.Diagrams[0].Default)
	assert.Equal(t, 10, list.Diagrams[0].Tables)

	out, err = execute(t, "--db", db, "--format", "json", "inspect", id)
	require.NoError(t, err)
	var res InspectResult
	decodeData(t, out, &res)
	assert.Equal(t, 8, res.Tables)
	assert.Equal(t, 2, res.Views)
	assert.Equal(t, 7, res.Relationships)
	assert.Equal(t, 2, res.Dependencies)
	assert.Equal(t, 2, res.Areas)
	assert.Equal(t, 1, res.Notes)
	assert.Len(t, res.Checksum, 64)
	assert.Empty(t, res.Overlap)
}

func TestListText(t *testing.T) {
	db, id := seedStore(t)

	out, err := execute(t, "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "*")
	assert.Contains(t, out, id)

	empty := filepath.Join(t.TempDir(), "empty.db")
	out, err = execute(t, "--db", empty, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No diagrams stored.")
}

func TestDefaultCommand(t *testing.T) {
	db, id := seedStore(t)

	out, err := execute(t, "--db", db, "default")
	require.NoError(t, err)
	assert.Equal(t, "Default diagram: "+id+"\n", out)

	out, err = execute(t, "--db", db, "default", "--clear")
	require.NoError(t, err)
	assert.Equal(t, "No default diagram.\n", out)

	_, err = execute(t, "--db", db, "default", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "diagram missing not found")

	out, err = execute(t, "--db", db, "--format", "json", "default", id)
	require.NoError(t, err)
	var res DefaultResult
	decodeData(t, out, &res)
	assert.Equal(t, id, res.DefaultDiagramID)

	_, err = execute(t, "--db", db, "default", id, "--clear")
	require.Error(t, err)
}

func TestDeleteCommand(t *testing.T) {
	db, id := seedStore(t)

	out, err := execute(t, "--db", db, "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "Deleted diagram "+id+"\n", out)

	out, err = execute(t, "--db", db, "default")
	require.NoError(t, err)
	assert.Equal(t, "No default diagram.\n", out)

	_, err = execute(t, "--db", db, "delete", id)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeedToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	out, err := execute(t, "seed", "--seed", "9", "--tables", "4", "--views", "0", "--areas", "1", "--notes", "0", "--name", "Demo", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Generated "Demo"`)
	assert.Contains(t, out, path)

	d, err := harness.LoadDiagram(path)
	require.NoError(t, err)
	assert.Equal(t, "Demo", d.Name)
	assert.Len(t, d.Tables, 4)
	assert.Len(t, d.Areas, 1)
}

func TestSeedRejectsNegativeCounts(t *testing.T) {
	_, err := execute(t, "seed", "--tables", "-1", "-o", filepath.Join(t.TempDir(), "x.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspectFile(t *testing.T) {
	out, err := execute(t, "inspect", "--file", "../harness/testdata/fixtures/shop.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Diagram: shop (Shop)")
	assert.Contains(t, out, "Tables: 2 (1 views)")
	assert.Contains(t, out, "Area a1: orders")
	assert.Contains(t, out, "Visible: 5 nodes, 2 edges")
	assert.Contains(t, out, "Overlap: none")
}

func TestInspectOverlapClusters(t *testing.T) {
	d, err := harness.LoadDiagram("../harness/testdata/fixtures/shop.yaml")
	require.NoError(t, err)
	d.Tables[1].X, d.Tables[1].Y = 100, 10

	res, err := Inspect(d)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"orders", "users"}}, res.Overlap)

	buf := &bytes.Buffer{}
	res.RenderText(buf)
	assert.Contains(t, buf.String(), "Overlap: 1 cluster(s)\n  - orders, users\n")
}

func TestInspectErrors(t *testing.T) {
	_, err := execute(t, "inspect", "--driver", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagram id or --file is required")

	_, err = execute(t, "inspect", "--driver", "memory", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagram nope not found")

	_, err = execute(t, "inspect", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "erdsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  driver: memory\nlog:\n  level: warn\n"), 0o644))

	out, err := execute(t, "--config", cfgPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No diagrams stored.")

	_, err = execute(t, "--config", filepath.Join(dir, "missing.yaml"), "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--driver", "postgres", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn is required")
}
