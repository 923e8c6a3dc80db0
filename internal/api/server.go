package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"power6/internal/model"
	"power6/internal/service"
)

const shutdownTimeout = 5 * time.Second

// UserLookup resolves the owner of a bearer token.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Server is the JSON API over tasks and streaks.
type Server struct {
	tasks   *service.TaskService
	streaks *service.StreakService
	users   UserLookup
	secret  string
	router  *gin.Engine
}

// NewServer creates the API server and registers its routes.
func NewServer(tasks *service.TaskService, streaks *service.StreakService, users UserLookup, secret string) *Server {
	router := gin.Default()

	s := &Server{
		tasks:   tasks,
		streaks: streaks,
		users:   users,
		secret:  secret,
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)

	authed := router.Group("/", s.requireUser)
	{
		authed.GET("/tasks", s.handleListTasks)
		authed.GET("/tasks/today", s.handleTodayTasks)
		authed.GET("/tasks/history", s.handleHistory)
		authed.GET("/tasks/:id", s.handleGetTask)
		authed.POST("/tasks", s.handleCreateTask)
		authed.PATCH("/tasks/:id", s.handlePatchTask)
		authed.PUT("/tasks/:id", s.handlePatchTask)
		authed.POST("/tasks/:id/toggle", s.handleToggleTask)
		authed.DELETE("/tasks/:id", s.handleDeleteTask)

		authed.GET("/streak", s.handleGetStreak)
		authed.POST("/streak/refresh", s.handleRefreshStreak)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("[info] api listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
