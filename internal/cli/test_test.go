package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

// copyScenario copies one harness scenario and its fixture into a fresh
// scenarios directory so golden files can be written safely.
func copyScenario(t *testing.T, name string) string {
	t.Helper()
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	fixtures := filepath.Join(root, "fixtures")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.MkdirAll(fixtures, 0o755))

	data, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, name+".yaml"), data, 0o644))

	data, err = os.ReadFile("../harness/testdata/fixtures/shop.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fixtures, "shop.yaml"), data, 0o644))
	return scenarios
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ drag_into_area")
	assert.Contains(t, out, "✓ connect_fields")
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", harnessScenarios, "--filter", "remove_*")
	require.NoError(t, err, out)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	require.Len(t, response.Data.Scenarios, 1)
	assert.Equal(t, "remove_table", response.Data.Scenarios[0].Name)
	assert.Equal(t, 1, response.Data.Passed)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := copyScenario(t, "overlap_pulse")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "golden updated")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "overlap_pulse.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/overlap_pulse.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenario(t, "read_only")
	golden := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(golden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(golden, "read_only.golden"), []byte("{}\n"), 0o644))

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ read_only")
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := copyScenario(t, "drag_into_area")
	path := filepath.Join(dir, "drag_into_area.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("expect: a1"), []byte("expect: elsewhere"), 1)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
}

func TestTestCommandBadScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestGoldenDir(t *testing.T) {
	assert.Equal(t, "custom", goldenDir("custom", harnessScenarios))
	assert.Equal(t, filepath.Join("..", "harness", "testdata", "golden"), goldenDir("", harnessScenarios))

	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "golden"), goldenDir("", dir))
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "--golden-dir")
	assert.Contains(t, out, "scenarios-dir")
}
