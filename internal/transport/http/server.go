// Package apihttp exposes the sizing service over a small REST surface:
// signal injection, order and journal queries, portfolio snapshot.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marlin/internal/logger"
	"marlin/internal/order"
	"marlin/internal/portfolio"
	"marlin/internal/store/gormstore"
	"marlin/internal/store/journal"
)

// SignalHandler runs one sizing pass for an externally produced evaluation.
// Implemented by the app service.
type SignalHandler interface {
	HandleSignal(ctx context.Context, symbol string, evaluation float64) ([]*order.Spec, error)
}

type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr      string
	Signals   SignalHandler
	Orders    *gormstore.OrderStore
	Journal   *journal.Journal
	Portfolio *portfolio.Portfolio
	Symbols   []string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Signals == nil {
		return nil, errors.New("http server requires a signal handler")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{cfg: cfg}
	api := router.Group("/api")
	api.POST("/signals", h.handleSignal)
	api.GET("/orders", h.handleOrders)
	api.GET("/journal", h.handleJournal)
	api.GET("/portfolio", h.handlePortfolio)
	api.GET("/symbols", h.handleSymbols)

	return &Server{addr: cfg.Addr, router: router}, nil
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
