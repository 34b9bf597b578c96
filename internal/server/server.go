// Package server exposes sessions over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	Profile        profile.Options
	Load           table.Options
	// IdleTTL drops sessions untouched for this long; zero keeps them.
	IdleTTL time.Duration
}

type Server struct {
	router *gin.Engine
	store  *session.Store
	orch   *chat.Orchestrator
	opts   Options
	log    zerolog.Logger
}

func New(orch *chat.Orchestrator, store *session.Store, opts Options, log zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if store == nil {
		store = session.NewStore()
	}
	s := &Server{
		router: gin.New(),
		store:  store,
		orch:   orch,
		opts:   opts,
		log:    log,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.router.MaxMultipartMemory = opts.MaxUploadBytes
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": s.store.Len(), "time": time.Now().Format(time.RFC3339)})
	})

	api := s.router.Group("/api/sessions")
	{
		api.POST("", s.createSession)
		api.DELETE("/:id", s.deleteSession)
		api.POST("/:id/file", s.uploadFile)
		api.PUT("/:id/sheet", s.selectSheet)
		api.GET("/:id/profile", s.getProfile)
		api.POST("/:id/questions", s.askQuestion)
		api.GET("/:id/history", s.getHistory)
		api.DELETE("/:id/history", s.clearHistory)
	}
	s.router.GET("/sessions/:id", s.transcriptPage)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.opts.IdleTTL > 0 {
		go s.pruneLoop(ctx)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info().Msg("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) pruneLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.IdleTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.store.Prune(s.opts.IdleTTL); n > 0 {
				s.log.Debug().Int("removed", n).Msg("pruned idle sessions")
			}
		}
	}
}
