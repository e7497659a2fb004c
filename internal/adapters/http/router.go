// Package http serves the local status API: the registered sessions and
// the recent lifecycle events, plus explicit session start and stop.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/app"
	"github.com/dkeye/livesignal/internal/app/orch"
	"github.com/dkeye/livesignal/internal/config"
	"github.com/dkeye/livesignal/internal/domain"
)

// SessionAPI is implemented by *orch.Orchestrator.
type SessionAPI interface {
	Sessions(ctx context.Context) ([]app.SessionInfo, error)
	StartSession(ctx context.Context, server string, target domain.TargetID, sid domain.SessionID) error
	StopSession(ctx context.Context, sid domain.SessionID) error
}

type startRequest struct {
	Server    string `json:"server" binding:"required"`
	Target    string `json:"target" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a per-browser token in the cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get("client_token").(string)
		if token == "" {
			token = genClientToken()
			s.Set("client_token", token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg config.StatusConfig, api SessionAPI, board *Board) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("LivesignalSessions", store))
	r.Use(ClientTokenMiddleware())

	limiter := newRateLimiter(cfg.StartLimit, cfg.StartWindow)

	g := r.Group("/api")

	g.GET("/sessions", func(c *gin.Context) {
		list, err := api.Sessions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	g.POST("/sessions", func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "server, target and session_id are required"})
			return
		}
		if !limiter.Allow(c.GetString("client_token")) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many session starts"})
			return
		}
		sid := domain.SessionID(req.SessionID)
		err := api.StartSession(c.Request.Context(), req.Server, domain.TargetID(req.Target), sid)
		switch {
		case errors.Is(err, orch.ErrUnknownServer):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, orch.ErrDuplicate):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			log.Info().
				Str("module", "adapters.http").
				Str("client", c.GetString("client_token")).
				Str("sid", req.SessionID).
				Msg("session started by request")
			c.JSON(http.StatusCreated, gin.H{"session_id": sid})
		}
	})

	g.DELETE("/sessions/:id", func(c *gin.Context) {
		err := api.StopSession(c.Request.Context(), domain.SessionID(c.Param("id")))
		switch {
		case errors.Is(err, orch.ErrUnknownSession):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.Status(http.StatusNoContent)
		}
	})

	g.GET("/events", func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{"events": board.Events(limit)})
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
