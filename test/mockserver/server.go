// Package mockserver is a scriptable stand-in for the llama.cpp server
// the switcher health-checks, used to rehearse the commit and rollback
// paths without a GPU host.
package mockserver

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// Server is the mock inference server
type Server struct {
	state  *State
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new mock inference server
func NewServer(state *State) *Server {
	if state == nil {
		state = NewState()
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		state:  state,
		router: router,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// State returns the underlying state for test manipulation
func (s *Server) State() *State {
	return s.state
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/v1/models", s.handleModels)

	// Admin hooks for scripting readiness from tests and rehearsals
	s.router.POST("/admin/reset", s.handleReset)
	s.router.POST("/admin/never-healthy", s.handleNeverHealthy)
}

// Run starts the server on the given address
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.state.Healthy() {
		s.logger.Debug("health poll while loading", slog.Int("polls", s.state.Polls()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading model"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleModels mimics the OpenAI-compatible model listing
func (s *Server) handleModels(c *gin.Context) {
	model := s.state.Model()
	if model == "" {
		model = "current.gguf"
	}
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data": []gin.H{
			{"id": model, "object": "model", "created": time.Now().Unix()},
		},
	})
}

func (s *Server) handleReset(c *gin.Context) {
	s.state.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) handleNeverHealthy(c *gin.Context) {
	s.state.SetNeverHealthy(true)
	c.JSON(http.StatusOK, gin.H{"status": "never healthy"})
}
