package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erdsync/internal/bus"
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/engine"
	"github.com/roach88/erdsync/internal/server"
	"github.com/roach88/erdsync/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleDiagram() diagram.Diagram {
	return diagram.Diagram{
		ID:           "shop",
		Name:         "Shop",
		DatabaseType: "postgresql",
		Tables: []diagram.Table{
			{ID: "users", Name: "users", Schema: "public", X: 0, Y: 0, Fields: []diagram.Field{
				{ID: "u_id", Name: "id", Type: "int", PrimaryKey: true},
			}},
			{ID: "orders", Name: "orders", Schema: "sales", X: 400, Y: 0, Fields: []diagram.Field{
				{ID: "o_id", Name: "id", Type: "int", PrimaryKey: true},
				{ID: "o_note", Name: "note", Type: "text"},
			}},
		},
	}
}

type harness struct {
	t      *testing.T
	store  *store.MemStore
	engine *engine.Engine
	srv    *server.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemStore()
	require.NoError(t, st.SaveDiagram(context.Background(), sampleDiagram()))

	b := bus.New()
	m := diagram.NewModel(diagram.WithPublisher(b))
	m.Load(sampleDiagram())
	e := engine.New(m, b, engine.WithPersistence(st, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{
		t:      t,
		store:  st,
		engine: e,
		srv:    server.New(e, st, server.Options{AllowOrigins: []string{"http://ui.test"}}),
	}
}

func (h *harness) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func nodeByID(t *testing.T, resp map[string]any, id string) map[string]any {
	t.Helper()
	data := resp["data"].(map[string]any)
	if v, ok := data["view"]; ok {
		data = v.(map[string]any)
	}
	for _, n := range data["nodes"].([]any) {
		node := n.(map[string]any)
		if node["id"] == id {
			return node
		}
	}
	t.Fatalf("node %s not in response", id)
	return nil
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "shop", body["data"].(map[string]any)["diagramId"])
}

func TestServer_ListAndOpenDiagrams(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodGet, "/diagrams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "shop", list[0].(map[string]any)["id"])

	rec, _ = h.do(http.MethodPost, "/diagrams/missing/open", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	other := sampleDiagram()
	other.ID = "other"
	other.Tables = other.Tables[:1]
	require.NoError(t, h.store.SaveDiagram(context.Background(), other))

	rec, body = h.do(http.MethodPost, "/diagrams/other/open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "other", data["diagramId"])
	assert.Len(t, data["nodes"], 1)
}

func TestServer_NodeChangesCommitOnSettle(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodPost, "/changes/nodes", map[string]any{
		"changes": []map[string]any{{"type": "position", "id": "users", "position": map[string]float64{"x": 40, "y": 50}}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	pos := nodeByID(t, body, "users")["position"].(map[string]any)
	assert.Equal(t, 40.0, pos["x"])

	rec, body = h.do(http.MethodPost, "/flush", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["writes"])

	saved, err := h.store.GetDiagram(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, 40.0, saved.Tables[0].X)
	assert.Equal(t, 50.0, saved.Tables[0].Y)
}

func TestServer_BadRequests(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodPost, "/changes/nodes", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])

	rec, _ = h.do(http.MethodPost, "/connect", map[string]any{"action": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(http.MethodPost, "/connect", map[string]any{"action": "move"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ConnectFlow(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(http.MethodPost, "/connect", map[string]any{"action": "end", "nodeId": "users"})
	assert.Equal(t, http.StatusConflict, rec.Code, "end without start")

	rec, body := h.do(http.MethodPost, "/connect", map[string]any{
		"action": "start", "nodeId": "orders", "handleId": "left_rel_o_note",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["view"].(map[string]any)["connecting"])

	rec, _ = h.do(http.MethodPost, "/connect", map[string]any{
		"action": "move", "position": map[string]float64{"x": 10, "y": 10},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = h.do(http.MethodPost, "/connect", map[string]any{
		"action": "end", "nodeId": "users", "handleId": "target_rel_0_u_id",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(engine.CodeIncompatibleTypes), body["code"])

	h.do(http.MethodPost, "/connect", map[string]any{
		"action": "start", "nodeId": "orders", "handleId": "left_rel_o_id",
	})
	rec, body = h.do(http.MethodPost, "/connect", map[string]any{
		"action": "end", "nodeId": "users", "handleId": "target_rel_0_u_id",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["createdId"])
	assert.Equal(t, false, data["view"].(map[string]any)["connecting"])
	assert.Len(t, data["view"].(map[string]any)["edges"], 1)
}

func TestServer_FilterAndOverlap(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodGet, "/overlap", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["data"].(map[string]any)["hasOverlap"])

	h.do(http.MethodPost, "/changes/nodes", map[string]any{
		"changes": []map[string]any{{"type": "position", "id": "orders", "position": map[string]float64{"x": 100, "y": 10}}},
	})
	_, body = h.do(http.MethodGet, "/overlap", nil)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["hasOverlap"])
	assert.Equal(t, []any{[]any{"orders", "users"}}, data["clusters"])

	rec, body = h.do(http.MethodPut, "/filter", map[string]any{
		"filter": map[string]any{"schemaIds": []string{"public"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, nodeByID(t, body, "orders")["hidden"])
	assert.Nil(t, nodeByID(t, body, "users")["hidden"])

	_, body = h.do(http.MethodGet, "/overlap", nil)
	assert.Equal(t, false, body["data"].(map[string]any)["hasOverlap"], "hidden tables leave the overlap graph")
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/view", nil)
	req.Header.Set("Origin", "http://ui.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://ui.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_NoStore(t *testing.T) {
	b := bus.New()
	m := diagram.NewModel(diagram.WithPublisher(b))
	e := engine.New(m, b)
	t.Cleanup(e.Close)

	srv := server.New(e, nil, server.Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagrams", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_OpenWritesPendingEditsOfPreviousDiagram(t *testing.T) {
	h := newHarness(t)
	other := sampleDiagram()
	other.ID, other.Name = "other", "Other"
	require.NoError(t, h.store.SaveDiagram(context.Background(), other))

	rec, _ := h.do(http.MethodPost, "/changes/nodes", map[string]any{
		"changes": []map[string]any{{"type": "position", "id": "users", "position": map[string]float64{"x": 420, "y": 200}}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodPost, "/diagrams/other/open", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.WaitSaved(ctx))

	shop, err := h.store.GetDiagram(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, 420.0, shop.Tables[0].X)
	reopened, err := h.store.GetDiagram(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, 0.0, reopened.Tables[0].X)
}
