package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/warroom/backend/internal/config"
	"github.com/emilythestrangee/warroom/backend/internal/database"
	"github.com/emilythestrangee/warroom/backend/internal/handlers"
	"github.com/emilythestrangee/warroom/backend/internal/middleware"
)

type Server struct {
	log     *slog.Logger
	cfg     config.Config
	db      database.Service
	handler *handlers.Handler
}

func New(log *slog.Logger, cfg config.Config, db database.Service, handler *handlers.Handler) *Server {
	return &Server{log: log, cfg: cfg, db: db, handler: handler}
}

// HTTPServer wraps the routes in an http.Server listening on the
// configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Origins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware([]byte(s.cfg.JWTSecret)))
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.GET("/threads", s.handler.Post.GetThreads)
			protected.POST("/threads", s.handler.Post.CreateThread)
			protected.GET("/threads/:id/posts", s.handler.Post.GetThreadPosts)
			protected.POST("/threads/:id/posts", s.handler.Post.CreatePost)
			protected.GET("/posts/:id", s.handler.Post.GetPost)
			protected.POST("/posts/:id/vote", s.handler.Post.VotePost)

			protected.GET("/conversations", s.handler.Message.GetConversations)
			protected.GET("/conversations/:peer", s.handler.Message.GetConversation)
			protected.POST("/messages", s.handler.Message.SendMessage)
			protected.GET("/messages/:id", s.handler.Message.GetMessage)
			protected.POST("/messages/read", s.handler.Message.MarkRead)

			protected.GET("/users", s.handler.User.GetUsers)
			protected.GET("/users/:id", s.handler.User.GetUserProfile)

			protected.GET("/realtime", s.handler.Realtime.Stream)
		}
	}

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.InfoContext(c.Request.Context(), "handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
