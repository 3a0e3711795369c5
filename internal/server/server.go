// Package server exposes the chat engine over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shopassist/internal/catalog"
	"shopassist/internal/logger"
	"shopassist/internal/session"
	"shopassist/pkg"
)

// ChatHandler runs one conversational turn.
type ChatHandler interface {
	HandleMessage(ctx context.Context, sessionID, userInput string) (string, []pkg.ProductCandidate, error)
}

// Reloader swaps in fresh catalog artifacts.
type Reloader interface {
	Reload() (*catalog.Resources, error)
}

// ChatRequest is the chat endpoint payload.
type ChatRequest struct {
	Message     string `json:"message" binding:"required"`
	SessionID   string `json:"session_id"`
	ProductType string `json:"product_type"`
}

// ChatResponse is the chat endpoint reply.
type ChatResponse struct {
	Response  string                 `json:"response"`
	SessionID string                 `json:"session_id"`
	Products  []pkg.ProductCandidate `json:"products"`
}

// Server owns the gin engine and its route handlers.
type Server struct {
	router   ChatHandler
	sessions *session.Store
	reloader Reloader
	engine   *gin.Engine
}

// New builds the HTTP server and registers routes.
func New(router ChatHandler, sessions *session.Store, reloader Reloader) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:   router,
		sessions: sessions,
		reloader: reloader,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.handleHealth)
	api := s.engine.Group("/api/v1")
	api.POST("/chat", s.handleChat)
	api.POST("/admin/reload", s.handleReload)
	return s
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	logger.Info().Str("addr", addr).Msg("http server listening")
	return s.engine.Run(addr)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// An explicit product_type on the request wins over whatever the
	// classifier extracts, so write it to memory before routing.
	if req.ProductType == pkg.ProductTypeSingle || req.ProductType == pkg.ProductTypeCombo {
		productType := req.ProductType
		if _, err := s.sessions.Update(c.Request.Context(), sessionID, pkg.MemoryUpdate{ProductType: &productType}); err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("product type pre-write failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session update failed"})
			return
		}
	}

	reply, products, err := s.router.HandleMessage(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat processing failed"})
		return
	}
	if products == nil {
		products = []pkg.ProductCandidate{}
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:  reply,
		SessionID: sessionID,
		Products:  products,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	resources, err := s.reloader.Reload()
	if err != nil {
		logger.Error().Err(err).Msg("catalog reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "products": len(resources.Metadata)})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
