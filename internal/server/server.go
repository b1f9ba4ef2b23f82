package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"manageease/internal/tasks"
	"manageease/internal/users"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP-level settings.
type Config struct {
	StaticDir     string
	AllowOrigins  []string
	SecureCookies bool
	// RateLimiter guards /api; nil disables rate limiting.
	RateLimiter gin.HandlerFunc
}

// Server provides HTTP handlers for the task manager backend.
type Server struct {
	engine *gin.Engine
	db     Pinger
	tasks  *tasks.Service
	users  *users.Service
	logger *slog.Logger
	cfg    Config
}

// New constructs the HTTP server with routes and middleware configured.
func New(db Pinger, taskSvc *tasks.Service, userSvc *users.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(recoverWithLogger(logger))
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api", "/health"))
	router.Use(securityHeaders())
	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	srv := &Server{
		engine: router,
		db:     db,
		tasks:  taskSvc,
		users:  userSvc,
		logger: logger,
		cfg:    cfg,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	if s.cfg.RateLimiter != nil {
		api.Use(s.cfg.RateLimiter)
	}
	api.GET("/healthz", s.handleHealth)

	v1 := api.Group("/v1")
	{
		authRoutes := v1.Group("/auth")
		authRoutes.POST("/register", s.handleRegister)
		authRoutes.POST("/login", s.handleLogin)
		authRoutes.POST("/refresh", s.handleRefresh)
		authRoutes.POST("/logout", s.handleLogout)
		authRoutes.GET("/me", s.requireAuth(), s.handleGetProfile)

		protected := v1.Group("")
		protected.Use(s.requireAuth())

		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.GET("", s.handleListTasks)
			taskRoutes.POST("", s.handleCreateTask)
			taskRoutes.GET("/:id", s.handleGetTask)
			taskRoutes.PUT("/:id", s.handleUpdateTask)
			taskRoutes.PATCH("/:id/status", s.handleChangeTaskStatus)
			taskRoutes.DELETE("/:id", s.handleDeleteTask)
		}

		userRoutes := protected.Group("/users")
		{
			userRoutes.GET("", s.handleListUsers)
			userRoutes.GET("/:id", s.handleGetUser)
		}

		profile := protected.Group("/profile")
		{
			profile.GET("", s.handleGetProfile)
			profile.PUT("", s.handleUpdateProfile)
			profile.PUT("/password", s.handleChangePassword)
			profile.POST("/deactivate", s.handleDeactivate)
			profile.DELETE("", s.handleDeleteAccount)
		}
	}

	s.mountStatic()
}

// handleHealth reports liveness, including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// bindJSON decodes the request body, answering 400 itself on failure.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.logger.Debug("malformed request body", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		abortJSON(c, http.StatusBadRequest, "validation_error", "invalid request body")
		return false
	}
	return true
}
