package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/agent"
	"github.com/ard14n/AJETE/internal/config"
)

// Server binds the controller to HTTP.
type Server struct {
	cfg        *config.Config
	controller *agent.Controller
	hub        *Hub
	models     *modelCatalogue
	logger     *zap.Logger
	httpServer *http.Server
}

// New wires the server. The hub doubles as the controller's event sink.
func New(cfg *config.Config, controller *agent.Controller, hub *Hub, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		hub:        hub,
		models:     newModelCatalogue(cfg.LLM, logger),
		logger:     logger.Named("server"),
	}
}

// Router assembles the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type"}
	if containsWildcard(s.cfg.Server.AllowedOrigins) {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.POST("/start", s.handleStart)
	r.POST("/stop", s.handleStop)
	r.GET("/status", s.handleStatus)
	r.GET("/models", s.handleModels)
	r.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})
	r.Static("/downloads", s.cfg.Artifacts.Dir)
	return r
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control surface listening.", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.controller.Stop()
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleStart(c *gin.Context) {
	var opts schemas.RunOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if opts.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	resolved, err := s.controller.Start(opts)
	if err != nil {
		if errors.Is(err, agent.ErrRunActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already active"})
			return
		}
		s.logger.Error("Start failed.", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (s *Server) handleStop(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, gin.H{"status": string(schemas.StatusStopped)})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": string(s.controller.Status())})
}

func (s *Server) handleModels(c *gin.Context) {
	models, source := s.models.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"models": models, "source": source})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
