// Package agent implements the sidecar that runs next to a downstream
// server. It receives mute state pushed by the hub and answers local chat
// checks without a network round trip to the hub.
package agent

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/replication"
)

// Service ...
type Service struct {
	log    *slog.Logger
	key    string
	cache  *replication.MuteCache
	router *gin.Engine
}

// NewService ...
func NewService(log *slog.Logger, key string) *Service {
	gin.SetMode(gin.ReleaseMode)

	s := &Service{
		log:   log,
		key:   key,
		cache: replication.NewMuteCache(log),
	}
	s.setupRouter()
	return s
}

// setupRouter ...
func (s *Service) setupRouter() {
	router := gin.Default()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("authorization") != s.key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	})
	router.POST("/channel/:name", func(c *gin.Context) {
		if c.Param("name") != replication.ChannelName {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
			return
		}
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		ev, err := replication.DecodeMuteEvent(payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.cache.Apply(ev)
		c.Status(http.StatusNoContent)
	})
	router.GET("/chat/:uuid", func(c *gin.Context) {
		playerID, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
			return
		}
		mute, ok := s.cache.Muted(playerID)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"muted": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"muted":      true,
			"reason":     mute.Reason,
			"expiration": mute.Expiration.ExpirationMillis(),
		})
	})
	s.router = router
}

// Cache exposes the agent's mute cache.
func (s *Service) Cache() *replication.MuteCache {
	return s.cache
}

// Router exposes the underlying router, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start serves the agent API on addr. It blocks.
func (s *Service) Start(addr string) error {
	s.log.Info("agent listening", "address", addr)
	return s.router.Run(addr)
}
