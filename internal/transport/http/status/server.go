package statushttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/monitor"
	"pricewatch/internal/store"
	"pricewatch/internal/types"

	"github.com/gin-gonic/gin"
)

// Server exposes read-only price history and pass status.
type Server struct {
	addr   string
	router *gin.Engine
}

// ReportSource returns the most recent pass report, if any.
type ReportSource interface {
	LastReport() (monitor.PassReport, bool)
}

type ServerConfig struct {
	Addr     string
	Store    store.ObservationStore
	Products func() []types.Product
	Window   time.Duration
	Reports  ReportSource
	Now      func() time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("status http server requires a store")
	}
	if cfg.Products == nil {
		return nil, errors.New("status http server requires a product source")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	if cfg.Window <= 0 {
		cfg.Window = monitor.DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is canceled or the listener fails.
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
	logger.Infof("status http listening on %s", s.addr)

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
