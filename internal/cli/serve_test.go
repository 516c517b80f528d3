package cli

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/harness"
	"github.com/roach88/erdsync/internal/store"
)

func memConfig() config.Config {
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: config.DriverMemory}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Engine.SaveDelay = config.Duration(time.Hour)
	return cfg
}

func TestServe_FlushesOnShutdown(t *testing.T) {
	st := store.NewMemStore()
	d, err := harness.LoadDiagram("../harness/testdata/fixtures/shop.yaml")
	require.NoError(t, err)
	require.NoError(t, st.SaveDiagram(context.Background(), d))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	opts := &ServeOptions{RootOptions: &RootOptions{Format: "text"}, Ready: func(addr string) { ready <- addr }}
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	done := make(chan error, 1)
	go func() { done <- serve(ctx, opts, memConfig(), st, "shop", cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"changes":[{"type":"position","id":"users","position":{"x":420,"y":200}}]}`
	resp, err = http.Post("http://"+addr+"/changes/nodes", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The save delay is an hour; only the shutdown flush can write this.
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}

	saved, err := st.GetDiagram(context.Background(), "shop")
	require.NoError(t, err)
	users, ok := findTable(saved, "users")
	require.True(t, ok)
	assert.Equal(t, 420.0, users.X)
	assert.Equal(t, "a1", users.ParentAreaID)
	assert.Contains(t, out.String(), "Serving on http://"+addr)
}

func TestServe_UnknownDiagram(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	opts := &ServeOptions{RootOptions: &RootOptions{Format: "text"}}

	err := serve(context.Background(), opts, memConfig(), store.NewMemStore(), "ghost", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "diagram ghost not found")
}

func TestServe_ListenFailure(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	opts := &ServeOptions{RootOptions: &RootOptions{Format: "text"}, Addr: "256.0.0.1:http"}

	err := serve(context.Background(), opts, memConfig(), store.NewMemStore(), "", cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func findTable(d diagram.Diagram, id string) (diagram.Table, bool) {
	for _, t := range d.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return diagram.Table{}, false
}
