// Package api serves the engine over HTTP with gin.
//
// The caller is identified by the X-Account header (a 64-hex account id or
// a handle); the host is trusted to set it. The current time always comes
// from the server clock. All commands go through an engine.Runner, so
// concurrent requests are applied one at a time.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// AccountHeader carries the caller identity.
const AccountHeader = "X-Account"

const callerKey = "courseswap.caller"

// Server is the HTTP host.
type Server struct {
	runner *engine.Runner
	logger *slog.Logger
	router *gin.Engine
}

// New creates a server submitting commands to runner.
func New(runner *engine.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: runner, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/courses/:course", s.getCourse)
	r.GET("/swaps/:course", s.listSwaps)
	r.GET("/members/:account", s.getMember)

	authed := r.Group("/", s.requireCaller())
	authed.POST("/init", s.initSchool)
	authed.POST("/members/:role", s.admit)
	authed.POST("/courses", s.createCourse)
	authed.POST("/courses/:course/registrations", s.register)
	authed.GET("/registrations", s.registrations)
	authed.POST("/swaps/:course", s.propose)
	authed.DELETE("/swaps/:course", s.withdraw)
	authed.POST("/swaps/:course/counter", s.counter)
	authed.DELETE("/swaps/:course/counter", s.withdrawCounter)
	authed.POST("/swaps/:course/accept", s.accept)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			s.logger.Error("http request failed", append(attrs, "error", c.Errors.String())...)
			return
		}
		s.logger.Debug("http request", attrs...)
	}
}

// requireCaller resolves the X-Account header.
func (s *Server) requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AccountHeader)
		if header == "" {
			fail(c, http.StatusUnauthorized, CodeUnauthenticated, AccountHeader+" header is required")
			return
		}
		caller, err := ir.ResolveAccount(header)
		if err != nil {
			fail(c, http.StatusUnauthorized, CodeUnauthenticated, err.Error())
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerOf(c *gin.Context) ir.AccountID {
	v, _ := c.Get(callerKey)
	caller, _ := v.(ir.AccountID)
	return caller
}

// submit runs cmd as the request's caller. On failure the error response
// has been written and ok is false.
func (s *Server) submit(c *gin.Context, cmd engine.Command) (result any, ok bool) {
	result, err := s.runner.Submit(c.Request.Context(), engine.Call{Caller: callerOf(c)}, cmd)
	if err != nil {
		handleError(c, err)
		return nil, false
	}
	return result, true
}

func courseParam(c *gin.Context) (ir.CourseID, bool) {
	id, err := ir.ResolveCourse(c.Param("course"))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return ir.CourseID{}, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
}
