package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"library/internal/models"
	"library/internal/services"
)

// The auth collaborator in front of this service authenticates the caller
// and forwards the identity in these headers.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

const actorKey = "actor"

type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

// IsStaff reports whether the actor may act on other users' records.
func (a Actor) IsStaff() bool {
	return a.Role == models.UserRoleAdmin || a.Role == models.UserRoleLibrarian
}

// CanSee reports whether the actor may read or act on a record owned by userID.
func (a Actor) CanSee(userID uuid.UUID) bool {
	return a.IsStaff() || a.ID == userID
}

func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(HeaderActorID))
		role := models.UserRole(c.GetHeader(HeaderActorRole))
		if err != nil || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid actor identity", "kind": "unauthenticated"})
			return
		}
		c.Set(actorKey, Actor{ID: id, Role: role})
		c.Next()
	}
}

func requireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted", "kind": "forbidden"})
	}
}

func actorFrom(c *gin.Context) Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(Actor)
	return actor
}

func rateLimit(lim *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "kind": "rate_limited"})
			return
		}
		c.Next()
	}
}

// requestLogger replaces gin.Logger with one zerolog line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// writeError maps a service error to its HTTP status. Internal failures are
// logged and reported without detail.
func writeError(c *gin.Context, err error) {
	kind := services.Kind(err)
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": kind})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": kind})
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": kind})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": kind})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_argument"})
}

func parseUUIDParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	return parseUUID(c, c.Param(name), what)
}

// parseUUID writes a 400 and returns false when raw is not a UUID.
func parseUUID(c *gin.Context, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}
