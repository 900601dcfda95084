package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditcontext "github.com/benangcapital/benang/internal/auditcontext"
)

const (
	// HeaderActor identifies the caller: "admin:<id>", "investor:<id>"
	// or "system". Authentication happens upstream at the gateway;
	// this service only enforces capabilities.
	HeaderActor = "X-Actor"

	contextActorKey = "actor"
)

var ErrTooManyRequests = errors.New("too_many_requests")

func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if actor == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actorType, actorID, ok := splitActor(actor)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := auditcontext.WithActor(c.Request.Context(), actorType, actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetString(contextActorKey)
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// MutationRateLimit throttles money mutations per actor and holds a
// short per-actor lock while the handler runs, so a double-submitted
// form bounces instead of racing the engines. The redis guard is a
// boundary courtesy; the database unique indexes stay the hard
// idempotency line, so a guard outage fails open.
func (s *Server) MutationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.mutationGuard == nil || !s.mutationGuard.Enabled() {
			c.Next()
			return
		}

		actor := c.GetString(contextActorKey)
		res, err := s.mutationGuard.AllowInvestor(c.Request.Context(), actor)
		if err != nil {
			s.log.Warn("mutation rate limit check failed", zap.Error(err))
		} else if res != nil && !res.Allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		token, locked, err := s.mutationGuard.TryLockInvestor(c.Request.Context(), actor)
		if err != nil {
			s.log.Warn("mutation lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !locked {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		defer func() {
			if err := s.mutationGuard.ReleaseInvestor(c.Request.Context(), actor, token); err != nil {
				s.log.Warn("mutation lock release failed", zap.Error(err))
			}
		}()
		c.Next()
	}
}

func splitActor(actor string) (actorType, actorID string, ok bool) {
	if actor == "system" {
		return "system", "", true
	}
	if raw, found := strings.CutPrefix(actor, "admin:"); found && raw != "" {
		return "admin", raw, true
	}
	if raw, found := strings.CutPrefix(actor, "investor:"); found && raw != "" {
		return "investor", raw, true
	}
	return "", "", false
}
