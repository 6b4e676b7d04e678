// Package api exposes the control endpoints of a running session.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"roomcast/coordinator"
	"roomcast/database"
	"roomcast/janus"
)

// Controller is the session surface served by the API.
type Controller interface {
	Status() coordinator.Status
	Participants() ([]*database.PublisherInfo, error)
	StartRemoteSpeech() error
	StopRemoteSpeech(publisherID uint64) error
}

// NewRouter registers the control routes. A nil metrics handler leaves
// /metrics unregistered.
func NewRouter(ctrl Controller, metrics http.Handler, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), Logger(), CORS())

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Status())
	})
	r.GET("/participants", func(c *gin.Context) {
		infos, err := ctrl.Participants()
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, infos)
	})
	r.POST("/speech", func(c *gin.Context) {
		if err := ctrl.StartRemoteSpeech(); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.DELETE("/speech/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid publisher id"})
			return
		}
		if err := ctrl.StopRemoteSpeech(id); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}

func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, janus.ErrNotJoined):
		status = http.StatusConflict
	case errors.Is(err, coordinator.ErrUnknownSubscriber):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Server serves the control routes.
type Server struct {
	server *http.Server
	conf   Config
}

// New creates a new instance of Server.
func New(config Config, ctrl Controller, metrics http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 2 * time.Second,
			Handler:     NewRouter(ctrl, metrics, config.Debug),
		},
		conf: config,
	}
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("module", "api").Int("port", s.conf.Port).Msg("starting control server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
