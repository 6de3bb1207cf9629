// Package api exposes the spider over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"depth_spider/internal/app"
	"depth_spider/internal/config"
	"depth_spider/internal/models"
)

const (
	readTimeoutSeconds = 10
	idleTimeoutSeconds = 120
	// Crawls run inside the request, so writes get no deadline.
	writeTimeout = 0
)

// Service is what the handlers need from the spider.
type Service interface {
	Search(ctx context.Context, req app.Request) ([]models.Result, error)
	Refresh(ctx context.Context, req app.Request) ([]models.Result, error)
	Ping(ctx context.Context) error
}

type Server struct {
	server *http.Server
	logger *logrus.Entry
}

func NewServer(cfg config.ServerConfig, svc Service, logger *logrus.Entry) *Server {
	router := NewRouter(svc, logger)

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  readTimeoutSeconds * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeoutSeconds * time.Second,
		},
	}
}

// NewRouter registers the routes on a fresh engine.
func NewRouter(svc Service, logger *logrus.Entry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	h := NewHandler(svc, logger)

	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.GET("/crawler", h.Crawl)
	api.POST("/refresh", h.Refresh)

	return router
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("http server listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func loggingMiddleware(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"client":   c.ClientIP(),
			"duration": time.Since(start).String(),
		}).Info("request handled")
	}
}
