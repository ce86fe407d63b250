// Package server exposes the chat service over HTTP with a WebSocket event
// stream.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/service"
)

// Config holds the server's dependencies.
type Config struct {
	Auth    *auth.Service
	Chat    *service.ChatService
	Events  *Hub
	Metrics *metrics.Collector
	Logger  *slog.Logger

	// AllowOrigins enables CORS for browser clients. Empty disables it.
	AllowOrigins []string
}

// Server routes API requests to the identity and chat services.
type Server struct {
	auth    *auth.Service
	chat    *service.ChatService
	events  *Hub
	metrics *metrics.Collector
	logger  *slog.Logger
	engine  *gin.Engine
}

// New creates the server and its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = NewHub(logger)
	}
	s := &Server{
		auth:    cfg.Auth,
		chat:    cfg.Chat,
		events:  events,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "http"),
	}
	s.engine = s.routes(cfg.AllowOrigins)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), LoggingMiddleware(s.logger))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", HeaderRequestID},
			ExposeHeaders:    []string{HeaderRequestID},
			AllowCredentials: true,
		}))
	}
	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, api.ErrNotFound)
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	a := r.Group("/api")
	{
		a.POST("/auth/signup", s.signUp)
		a.POST("/auth/login", s.signIn)
		a.POST("/auth/refresh", s.refresh)
		a.POST("/auth/logout", s.signOut)
		a.POST("/auth/verify", s.verifyEmail)
		a.POST("/auth/resend", s.resendVerification)
		a.POST("/auth/password/strength", s.passwordStrength)
		a.GET("/onboarding/questions", s.questions)
		a.GET("/stats", s.stats)
		a.GET("/route", OptionalAuth(s.auth), s.route)
	}

	p := a.Group("/", RequireAuth(s.auth))
	{
		p.GET("/auth/session", s.session)
		p.PUT("/auth/password", s.updatePassword)

		p.POST("/onboarding", s.completeOnboarding)

		p.GET("/profile", s.profile)
		p.PUT("/profile", s.updateProfile)

		p.GET("/chat", s.openChat)
		p.GET("/chat/messages", s.history)
		p.POST("/chat/messages", s.submit)
		p.DELETE("/chat/messages", s.clearChat)
		p.DELETE("/chat", s.closeChat)

		p.GET("/events", s.streamEvents)
	}
	return r
}

// bind decodes the JSON body into v, answering 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorBody{
			Error: "Invalid request body",
			Code:  api.CodeInvalidRequest,
		})
		return false
	}
	return true
}

func (s *Server) stats(c *gin.Context) {
	snap := s.metrics.Snapshot()
	snap.ActiveChats = s.chat.ActiveChats()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) streamEvents(c *gin.Context) {
	s.events.serve(c, userID(c))
}
