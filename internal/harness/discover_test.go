package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "c_drag.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c_drag.yaml"),
	}, paths)

	paths, err = FindScenarios(dir, "*drag*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c_drag.yaml")}, paths)
}

func TestFindScenarios_NoMatch(t *testing.T) {
	dir := t.TempDir()
	_, err := FindScenarios(dir, "")
	var nf *ScenarioNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "no scenarios in "+dir, err.Error())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), nil, 0o644))
	_, err = FindScenarios(dir, "zzz")
	assert.EqualError(t, err, `no scenarios matching "zzz" in `+dir)
}

func TestFindScenarios_BadInput(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorContains(t, err, "read scenarios directory")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), nil, 0o644))
	_, err = FindScenarios(dir, "[")
	assert.ErrorContains(t, err, "invalid filter")
}
