// Package api exposes health, status, and Prometheus metrics over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/paper"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

const (
	ServiceName         = "pairbot"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
	shutdownTimeout     = 5 * time.Second
)

// Status is the live view of a running session.
type Status struct {
	RunID    string             `json:"run_id"`
	Mode     string             `json:"mode"`
	AssetA   string             `json:"asset_a"`
	AssetB   string             `json:"asset_b"`
	LastBar  time.Time          `json:"last_bar"`
	Action   string             `json:"action"`
	Record   signal.Record      `json:"record"`
	Account  paper.Snapshot     `json:"account"`
	Fills    []execution.Fill   `json:"recent_fills"`
	Turnover paper.LedgerTotals `json:"turnover"`
}

// StatusProvider supplies the current Status.
type StatusProvider interface {
	Status() Status
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func() Status

// Status calls f.
func (f StatusFunc) Status() Status { return f() }

// Server serves the router on addr until its context ends.
type Server struct {
	status  StatusProvider
	log     zerolog.Logger
	started time.Time
	srv     *http.Server
}

// NewServer builds the HTTP server on addr; a nil status provider makes /status answer 503.
func NewServer(addr string, status StatusProvider, log zerolog.Logger) *Server {
	s := &Server{status: status, log: log, started: time.Now().UTC()}
	s.srv = &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(s.log))
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/status", s.statusHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

// Run blocks serving HTTP and shuts down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("api listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}
