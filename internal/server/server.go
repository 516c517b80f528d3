// Package server exposes an engine over HTTP with gin. Every request that
// touches engine state runs on the engine goroutine via Engine.Call.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/engine"
	"github.com/roach88/erdsync/internal/filter"
	"github.com/roach88/erdsync/internal/store"
	"github.com/roach88/erdsync/internal/view"
)

// Options configures the HTTP surface.
type Options struct {
	AllowOrigins []string
	// CallTimeout bounds each engine call. Zero means 5s.
	CallTimeout time.Duration
}

// Server routes HTTP requests to one engine and its store.
type Server struct {
	engine  *engine.Engine
	store   store.DiagramStore
	router  *gin.Engine
	timeout time.Duration
}

// New builds the router. st may be nil, in which case /diagrams
// endpoints answer 503.
func New(e *engine.Engine, st store.DiagramStore, opts Options) *Server {
	s := &Server{engine: e, store: st, timeout: opts.CallTimeout}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.health)
	r.GET("/diagrams", s.listDiagrams)
	r.POST("/diagrams/:id/open", s.openDiagram)
	r.GET("/view", s.getView)
	r.GET("/overlap", s.getOverlap)
	r.POST("/changes/nodes", s.nodeChanges)
	r.POST("/changes/edges", s.edgeChanges)
	r.POST("/connect", s.connect)
	r.POST("/canvas/click", s.canvasClick)
	r.PUT("/filter", s.putFilter)
	r.POST("/flush", s.flush)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer wraps the handler with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// call runs fn on the engine goroutine with the request context.
func (s *Server) call(c *gin.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	return s.engine.Call(ctx, fn)
}

// failCall maps an engine call error to a response.
func failCall(c *gin.Context, err error) {
	var rej *engine.RejectError
	switch {
	case errors.As(err, &rej):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Status:  "error",
			Message: rej.Message,
			Error:   rej.Error(),
			Code:    string(rej.Code),
		})
	case errors.Is(err, engine.ErrNoConnection):
		fail(c, http.StatusConflict, err, "no connection in progress")
	case errors.Is(err, engine.ErrClosed):
		fail(c, http.StatusServiceUnavailable, err, "engine closed")
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, err, "engine busy")
	default:
		fail(c, http.StatusInternalServerError, err, "engine call failed")
	}
}

// ViewSnapshot is the rendered state returned by /view and the change
// endpoints.
type ViewSnapshot struct {
	DiagramID  string      `json:"diagramId"`
	Nodes      []view.Node `json:"nodes"`
	Edges      []view.Edge `json:"edges"`
	Connecting bool        `json:"connecting"`
}

func (s *Server) snapshot() ViewSnapshot {
	snap := ViewSnapshot{
		DiagramID:  s.engine.Model().ID(),
		Nodes:      make([]view.Node, 0, len(s.engine.Nodes())),
		Edges:      make([]view.Edge, 0, len(s.engine.Edges())),
		Connecting: s.engine.Connecting(),
	}
	for _, n := range s.engine.Nodes() {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, e := range s.engine.Edges() {
		snap.Edges = append(snap.Edges, *e)
	}
	return snap
}

func (s *Server) health(c *gin.Context) {
	var id string
	if err := s.call(c, func() error {
		id = s.engine.Model().ID()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"diagramId": id,
		"queue":     s.engine.QueueLen(),
		"persist":   s.engine.PersistStats(),
	})
}

func (s *Server) listDiagrams(c *gin.Context) {
	if s.store == nil {
		fail(c, http.StatusServiceUnavailable, nil, "no store configured")
		return
	}
	list, err := s.store.ListDiagrams(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err, "failed to list diagrams")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	success(c, http.StatusOK, list)
}

func (s *Server) openDiagram(c *gin.Context) {
	if s.store == nil {
		fail(c, http.StatusServiceUnavailable, nil, "no store configured")
		return
	}
	d, err := s.store.GetDiagram(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, err, "diagram not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err, "failed to load diagram")
		return
	}

	var snap ViewSnapshot
	if err := s.call(c, func() error {
		s.engine.Load(d)
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

func (s *Server) getView(c *gin.Context) {
	var snap ViewSnapshot
	if err := s.call(c, func() error {
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

// OverlapReport is returned by /overlap.
type OverlapReport struct {
	HasOverlap  bool       `json:"hasOverlap"`
	Clusters    [][]string `json:"clusters"`
	PulseActive bool       `json:"pulseActive"`
}

func (s *Server) getOverlap(c *gin.Context) {
	var rep OverlapReport
	if err := s.call(c, func() error {
		rep = OverlapReport{
			HasOverlap:  s.engine.HasOverlap(),
			Clusters:    s.engine.OverlapClusters(),
			PulseActive: s.engine.PulseActive(),
		}
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	if rep.Clusters == nil {
		rep.Clusters = [][]string{}
	}
	success(c, http.StatusOK, rep)
}

type nodeChangesRequest struct {
	Changes []engine.NodeChange `json:"changes" binding:"required"`
}

func (s *Server) nodeChanges(c *gin.Context) {
	var req nodeChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "invalid request body")
		return
	}
	var snap ViewSnapshot
	if err := s.call(c, func() error {
		s.engine.ApplyNodeChanges(req.Changes)
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

type edgeChangesRequest struct {
	Changes []engine.EdgeChange `json:"changes" binding:"required"`
}

func (s *Server) edgeChanges(c *gin.Context) {
	var req edgeChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "invalid request body")
		return
	}
	var snap ViewSnapshot
	if err := s.call(c, func() error {
		s.engine.ApplyEdgeChanges(req.Changes)
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

// Connect actions.
const (
	ConnectStart  = "start"
	ConnectMove   = "move"
	ConnectEnd    = "end"
	ConnectCancel = "cancel"
)

type connectRequest struct {
	Action   string         `json:"action" binding:"required,oneof=start move end cancel"`
	NodeID   string         `json:"nodeId"`
	HandleID string         `json:"handleId"`
	Position *diagram.Point `json:"position"`
}

type connectResponse struct {
	CreatedID string        `json:"createdId,omitempty"`
	View      *ViewSnapshot `json:"view"`
}

func (s *Server) connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "invalid request body")
		return
	}
	if req.Action == ConnectMove && req.Position == nil {
		fail(c, http.StatusBadRequest, nil, "move requires a position")
		return
	}

	var resp connectResponse
	err := s.call(c, func() error {
		var err error
		switch req.Action {
		case ConnectStart:
			err = s.engine.StartConnect(req.NodeID, req.HandleID)
		case ConnectMove:
			s.engine.MoveConnect(*req.Position)
		case ConnectEnd:
			resp.CreatedID, err = s.engine.EndConnect(req.NodeID, req.HandleID)
		case ConnectCancel:
			s.engine.CancelConnect()
		}
		snap := s.snapshot()
		resp.View = &snap
		return err
	})
	if err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, resp)
}

func (s *Server) canvasClick(c *gin.Context) {
	var snap ViewSnapshot
	if err := s.call(c, func() error {
		s.engine.CanvasClick()
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

type filterRequest struct {
	Filter        *filter.Filter `json:"filter"`
	Loading       *bool          `json:"loading"`
	ShowViews     *bool          `json:"showViews"`
	DefaultSchema *string        `json:"defaultSchema"`
	ForceShow     []string       `json:"forceShow"`
}

func (s *Server) putFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err, "invalid request body")
		return
	}
	var snap ViewSnapshot
	if err := s.call(c, func() error {
		s.engine.SetFilter(req.Filter)
		if req.Loading != nil {
			s.engine.SetFilterLoading(*req.Loading)
		}
		if req.ShowViews != nil {
			s.engine.SetShowViews(*req.ShowViews)
		}
		if req.DefaultSchema != nil {
			s.engine.SetDefaultSchema(*req.DefaultSchema)
		}
		if req.ForceShow != nil {
			s.engine.SetForceShow(req.ForceShow...)
		}
		snap = s.snapshot()
		return nil
	}); err != nil {
		failCall(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

func (s *Server) flush(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	if err := s.engine.Flush(ctx); err != nil {
		if errors.Is(err, engine.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
			failCall(c, err)
			return
		}
		fail(c, http.StatusBadGateway, err, "save failed")
		return
	}
	success(c, http.StatusOK, s.engine.PersistStats())
}
