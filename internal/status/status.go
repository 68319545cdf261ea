// Package status serves a small read-only HTTP surface: health, the persisted
// bot state, the last tick and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/types"
)

type lastTick struct {
	Result *types.TickResult `json:"result"`
	Error  string            `json:"error,omitempty"`
}

type Server struct {
	Router *gin.Engine

	states  interfaces.StateStore
	botID   string
	started time.Time
	last    atomic.Pointer[lastTick]
	srv     *http.Server
}

func New(states interfaces.StateStore, botID string) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Router:  r,
		states:  states,
		botID:   botID,
		started: time.Now().UTC(),
	}
	s.routes()
	return s
}

// Record stores the outcome of the most recent tick.
func (s *Server) Record(res *types.TickResult, err error) {
	lt := &lastTick{Result: res}
	if err != nil {
		lt.Error = err.Error()
	}
	s.last.Store(lt)
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.health)
	s.Router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.Router.Group("/v1")
	{
		v1.GET("/state", s.state)
		v1.GET("/last-tick", s.lastTick)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"bot_id":     s.botID,
		"started_at": s.started,
	})
}

func (s *Server) state(c *gin.Context) {
	st, err := s.states.Load(c.Request.Context(), s.botID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state saved yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) lastTick(c *gin.Context) {
	lt := s.last.Load()
	if lt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tick yet"})
		return
	}
	c.JSON(http.StatusOK, lt)
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info(context.Background(), "Status server listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
