package control

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/companion"
	appconfig "github.com/aveline-ai/companiond/internal/config"
	"github.com/aveline-ai/companiond/internal/protocol"
	"github.com/aveline-ai/companiond/internal/storage"
)

// NewRouter executes the newRouter function.
func NewRouter(cfg appconfig.Config, manager *companion.Manager, hub *Hub, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/events", func(c *gin.Context) {
		hub.Handle(c.Writer, c.Request)
	})

	api := router.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, manager.SessionStatus())
	})

	api.GET("/characters", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"characters": manager.Characters()})
	})

	api.GET("/tracks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tracks": manager.Tracks()})
	})

	api.POST("/session/start", func(c *gin.Context) {
		var req protocol.StartRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		sessionID, err := manager.StartSession(req.Character)
		switch {
		case errors.Is(err, companion.ErrSessionActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, companion.ErrUnknownCharacter):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
		}
	})

	api.POST("/session/stop", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"stopped": manager.StopSession()})
	})

	api.POST("/session/interrupt", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"interrupted": manager.InterruptSession()})
	})

	api.GET("/characters/:id/histories", func(c *gin.Context) {
		histories := storage.GetHistoryList(cfg.ChatHistoryDir, c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"histories": histories})
	})

	api.GET("/characters/:id/histories/:uid", func(c *gin.Context) {
		messages, err := storage.GetHistory(cfg.ChatHistoryDir, c.Param("id"), c.Param("uid"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "history not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	})

	api.DELETE("/characters/:id/histories/:uid", func(c *gin.Context) {
		if !storage.DeleteHistory(cfg.ChatHistoryDir, c.Param("id"), c.Param("uid")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "history not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
