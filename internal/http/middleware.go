// Package http provides the HTTP server, router and shared middleware.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/vault/internal/errors"
	"github.com/allisson/vault/internal/httputil"
	"github.com/allisson/vault/internal/requestctx"
	sealUsecase "github.com/allisson/vault/internal/seal/usecase"
)

// Trusted headers set by the authenticating gateway in front of the service.
const (
	HeaderSubjectType = "X-Vault-Subject-Type"
	HeaderSubjectID   = "X-Vault-Subject-Id"
	HeaderTeamID      = "X-Vault-Team-Id"
)

// CustomLoggerMiddleware logs HTTP requests with the request id.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// RequestContextMiddleware copies the request id and client IP into the
// request context so use cases and the audit trail can see them.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = requestctx.WithCorrelationID(ctx, requestid.Get(c))
		ctx = requestctx.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// TrustedHeaderAuthMiddleware extracts the caller identity from headers set
// by the authenticating gateway. Requests without a complete identity are
// rejected; the service itself never verifies credentials.
func TrustedHeaderAuthMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := identityFromHeaders(c)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		ctx := requestctx.WithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// identityFromHeaders parses the trusted identity headers.
func identityFromHeaders(c *gin.Context) (requestctx.Identity, error) {
	var identity requestctx.Identity

	switch c.GetHeader(HeaderSubjectType) {
	case string(requestctx.SubjectUser):
		identity.SubjectType = requestctx.SubjectUser
	case string(requestctx.SubjectService):
		identity.SubjectType = requestctx.SubjectService
	default:
		return identity, apperrors.Wrap(apperrors.ErrUnauthorized, "missing or invalid subject type header")
	}

	subjectID, err := uuid.Parse(c.GetHeader(HeaderSubjectID))
	if err != nil {
		return identity, apperrors.Wrap(apperrors.ErrUnauthorized, "missing or invalid subject id header")
	}
	identity.SubjectID = subjectID

	teamID, err := uuid.Parse(c.GetHeader(HeaderTeamID))
	if err != nil {
		return identity, apperrors.Wrap(apperrors.ErrUnauthorized, "missing or invalid team id header")
	}
	identity.TeamID = teamID

	return identity, nil
}

// SealGateMiddleware rejects data-plane requests while the vault is sealed.
// Seal endpoints and health checks are registered outside this gate.
func SealGateMiddleware(sealUseCase sealUsecase.SealUseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sealUseCase.RequireUnsealed(); err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimiterStore holds per-subject rate limiters with automatic cleanup.
type rateLimiterStore struct {
	limiters sync.Map // map[string]*rateLimiterEntry
	rps      float64
	burst    int
}

// rateLimiterEntry holds a rate limiter and last access time for cleanup.
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// RateLimitMiddleware enforces per-subject rate limiting using a token
// bucket per caller. Authenticated requests are keyed by subject id and
// anonymous ones by client IP.
//
// Returns 429 Too Many Requests with a Retry-After header when the budget is
// exhausted.
func RateLimitMiddleware(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &rateLimiterStore{
		rps:   rps,
		burst: burst,
	}

	// Cleanup goroutine for stale limiters (every 5 minutes)
	go store.cleanupStale(context.Background(), 5*time.Minute)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if identity, ok := requestctx.IdentityFrom(c.Request.Context()); ok {
			key = identity.SubjectID.String()
		}

		limiter := store.getLimiter(key)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds())
			reservation.Cancel()

			logger.Debug("rate limit exceeded",
				slog.String("key", key),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please retry after the specified delay.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getLimiter retrieves or creates a rate limiter for a caller.
func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	if val, ok := s.limiters.Load(key); ok {
		entry := val.(*rateLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	entry := &rateLimiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	s.limiters.Store(key, entry)
	return limiter
}

// cleanupStale removes rate limiters that haven't been accessed recently.
func (s *rateLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			threshold := time.Now().Add(-1 * time.Hour)
			s.limiters.Range(func(key, value interface{}) bool {
				entry := value.(*rateLimiterEntry)
				entry.mu.Lock()
				shouldDelete := entry.lastAccess.Before(threshold)
				entry.mu.Unlock()

				if shouldDelete {
					s.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
