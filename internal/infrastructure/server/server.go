package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/fanmatch/internal/pipeline"
)

// ProgressFunc returns the live counters of the run being served.
type ProgressFunc func() pipeline.Progress

// Options configures the listener.
type Options struct {
	Addr string

	// StreamInterval is how often /progress/stream pushes a snapshot.
	StreamInterval time.Duration

	RateLimit    RateLimitConfig
	AllowOrigins []string

	// Development keeps gin in debug mode.
	Development bool
}

// DefaultOptions returns options for a listener on addr.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:           addr,
		StreamInterval: time.Second,
		RateLimit:      DefaultRateLimitConfig(),
		AllowOrigins:   []string{"*"},
	}
}

// Server wraps the HTTP listener and its dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	progress ProgressFunc
	interval time.Duration
	upgrader websocket.Upgrader

	listener net.Listener
	serving  sync.WaitGroup

	// mu guards closing; streams counts open progress streams.
	mu      sync.Mutex
	closing bool
	done    chan struct{}
	streams sync.WaitGroup
}

// New creates a server; nothing listens until Start.
func New(opts Options, metrics *monitoring.Metrics, progress ProgressFunc, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if progress == nil {
		progress = func() pipeline.Progress { return pipeline.Progress{} }
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		logger:   logger.Named("http"),
		metrics:  metrics,
		progress: progress,
		interval: opts.StreamInterval,
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	tracer := tracing.New("fanmatch-http", s.logger.Logger)
	currentRun := func() tracing.TraceID {
		return tracing.TraceID(s.progress().RunID)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer, currentRun))
	router.Use(monitoring.Middleware(metrics))
	router.Use(CORS(opts.AllowOrigins))
	if opts.RateLimit.RequestsPerSecond > 0 {
		router.Use(GlobalRateLimit(opts.RateLimit))
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", s.health)
	router.GET("/progress", s.snapshot)
	router.GET("/progress/stream", s.stream)

	s.router = router
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.listener = ln

	s.serving.Add(1)
	go func() {
		defer s.serving.Done()
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Shutdown stops accepting requests, ends open progress streams and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	close(s.done)
	s.mu.Unlock()

	s.logger.Info("Shutting down HTTP server")
	err := s.http.Shutdown(ctx)
	s.streams.Wait()
	s.serving.Wait()
	return err
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.progress())
}
