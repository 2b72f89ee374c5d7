package guardhub

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/frostveil-network/guardhub/guardhub/duration"
	"github.com/frostveil-network/guardhub/guardhub/locale"
	"github.com/frostveil-network/guardhub/guardhub/punishment"
	"github.com/frostveil-network/guardhub/guardhub/session"
)

// requestTimeout bounds the store work done for a single API call.
const requestTimeout = 5 * time.Second

// punishRequest is the body of a punishment creation call. An empty duration
// means permanent; a kick carries no duration at all.
type punishRequest struct {
	PlayerID uuid.UUID `json:"uuid"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Duration string    `json:"duration"`
}

// changeRequest is the body of a punishment change call.
type changeRequest struct {
	Reason   string `json:"reason"`
	Duration string `json:"duration"`
}

// connectRequest announces a player session. The callback URL is where the
// hub reaches the player's edge to disconnect or message them.
type connectRequest struct {
	PlayerID    uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	CallbackURL string    `json:"callback_url"`
}

// setupGin sets up gin for the hub API.
func (hub *GuardHub) setupGin() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("authorization") != hub.conf.Service.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	})
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	router.POST("/punishments", hub.handlePunish)
	router.DELETE("/punishments/:id", hub.handleCancel)
	router.PATCH("/punishments/:id", hub.handleChange)
	router.GET("/players/:uuid/punishments", hub.handlePunishmentsOf)
	router.GET("/players/:uuid/banned", hub.handleBanned)
	router.POST("/players/:uuid/chat", hub.handleChat)
	router.POST("/sessions", hub.handleConnect)
	router.DELETE("/sessions/:uuid", hub.handleDisconnect)

	hub.router = router
}

// handlePunish ...
func (hub *GuardHub) handlePunish(c *gin.Context) {
	var req punishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": locale.Translate("punishment.invalid")})
		return
	}

	var p *punishment.Punishment
	switch req.Type {
	case "ban", "mute":
		d := duration.Permanent()
		if req.Duration != "" {
			var err error
			if d, err = duration.Parse(req.Duration); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.Type == "ban" {
			p = hub.manager.NewBan(req.PlayerID, req.Name, req.Reason, d)
		} else {
			p = hub.manager.NewMute(req.PlayerID, req.Name, req.Reason, d)
		}
	case "kick":
		p = hub.manager.NewKick(req.PlayerID, req.Name, req.Reason)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": locale.Translate("punishment.invalid")})
		return
	}

	if err := hub.manager.Punish(c.Request.Context(), p); err != nil {
		hub.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, punishmentResponse(p))
}

// handleCancel ...
func (hub *GuardHub) handleCancel(c *gin.Context) {
	p, ok := hub.punishmentFromParam(c)
	if !ok {
		return
	}
	if err := hub.manager.Cancel(c.Request.Context(), p); err != nil {
		hub.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleChange ...
func (hub *GuardHub) handleChange(c *gin.Context) {
	var req changeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": locale.Translate("punishment.invalid")})
		return
	}
	d := duration.Permanent()
	if req.Duration != "" {
		var err error
		if d, err = duration.Parse(req.Duration); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	p, ok := hub.punishmentFromParam(c)
	if !ok {
		return
	}
	changed, err := hub.manager.Change(c.Request.Context(), p, d, req.Reason)
	if err != nil {
		hub.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, punishmentResponse(changed))
}

// handlePunishmentsOf ...
func (hub *GuardHub) handlePunishmentsOf(c *gin.Context) {
	playerID, ok := playerFromParam(c)
	if !ok {
		return
	}
	var kinds []punishment.Kind
	switch c.Query("type") {
	case "ban":
		kinds = []punishment.Kind{punishment.KindBan}
	case "mute":
		kinds = []punishment.Kind{punishment.KindMute}
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": locale.Translate("punishment.invalid")})
		return
	}

	punishments, err := hub.manager.PunishmentsOf(c.Request.Context(), playerID, kinds...)
	if err != nil {
		hub.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(punishments))
	for _, p := range punishments {
		out = append(out, punishmentResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"punishments": out})
}

// handleBanned ...
func (hub *GuardHub) handleBanned(c *gin.Context) {
	playerID, ok := playerFromParam(c)
	if !ok {
		return
	}
	bans, err := hub.manager.PunishmentsOf(c.Request.Context(), playerID, punishment.KindBan)
	if err != nil {
		hub.fail(c, err)
		return
	}
	longest := punishment.Longest(bans)
	if longest == nil {
		c.JSON(http.StatusOK, gin.H{"banned": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"banned": true,
		"ban":    punishmentResponse(longest),
	})
}

// handleChat ...
func (hub *GuardHub) handleChat(c *gin.Context) {
	playerID, ok := playerFromParam(c)
	if !ok {
		return
	}
	allowed, message := hub.gate.HandleChat(c.Request.Context(), playerID)
	if allowed {
		c.JSON(http.StatusOK, gin.H{"allowed": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": false, "message": message})
}

// handleConnect registers a player session. A player with an ongoing ban is
// refused before the session is registered.
func (hub *GuardHub) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": locale.Translate("punishment.invalid")})
		return
	}

	bans, err := hub.manager.PunishmentsOf(c.Request.Context(), req.PlayerID, punishment.KindBan)
	if err != nil {
		hub.fail(c, err)
		return
	}
	if ban := punishment.Longest(bans); ban != nil && ban.IsOngoing() {
		c.JSON(http.StatusForbidden, gin.H{"error": ban.FullReason()})
		return
	}

	var controller session.Controller
	if req.CallbackURL != "" {
		controller = session.NewWebhook(hub.log, req.CallbackURL, hub.conf.Service.AgentKey)
	}
	hub.sessions.Add(session.NewSession(req.PlayerID, req.Name, controller))
	c.Status(http.StatusNoContent)
}

// handleDisconnect ...
func (hub *GuardHub) handleDisconnect(c *gin.Context) {
	playerID, ok := playerFromParam(c)
	if !ok {
		return
	}
	hub.sessions.Remove(playerID)
	hub.gate.HandleDisconnect(playerID)
	c.Status(http.StatusNoContent)
}

// punishmentFromParam loads the punishment named by the :id parameter,
// writing the response itself when that fails.
func (hub *GuardHub) punishmentFromParam(c *gin.Context) (*punishment.Punishment, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid punishment id"})
		return nil, false
	}
	p, ok, err := hub.manager.FromID(c.Request.Context(), id)
	if err != nil {
		hub.fail(c, err)
		return nil, false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no punishment found"})
		return nil, false
	}
	return p, true
}

// playerFromParam ...
func playerFromParam(c *gin.Context) (uuid.UUID, bool) {
	playerID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return playerID, true
}

// punishmentResponse ...
func punishmentResponse(p *punishment.Punishment) gin.H {
	return gin.H{
		"id":         p.ID(),
		"uuid":       p.PlayerID(),
		"name":       p.PlayerName(),
		"type":       string(p.Type()),
		"reason":     p.Reason(),
		"expiration": p.Duration().ExpirationMillis(),
		"ongoing":    p.IsOngoing(),
	}
}

// fail maps lifecycle errors onto responses. Conflicting state surfaces as
// a conflict; everything else is reported to sentry and hidden behind a
// generic message.
func (hub *GuardHub) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, punishment.ErrInvalidState), errors.Is(err, punishment.ErrUnsupported):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		hub.log.Error("request failed", "path", c.FullPath(), "error", err)
		sentry.CaptureException(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": locale.Translate("error.internal")})
	}
}
