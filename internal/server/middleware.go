package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/toolvault/internal/accountctx"
	obsmetrics "github.com/smallbiznis/toolvault/internal/observability/metrics"
)

const (
	accountHeader  = "X-Account-Id"
	adminKeyHeader = "X-Admin-Key"

	webhookRatePerSecond = 20
	webhookBurst         = 40

	cartRatePerSecond = 10
	cartBurst         = 20
)

// AccountRequired resolves the calling customer from the X-Account-Id header.
// Identity verification happens upstream; the header carries the already
// authenticated account ID.
func (s *Server) AccountRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(accountHeader))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		accountID, err := snowflake.ParseString(raw)
		if err != nil || accountID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := accountctx.WithAccountID(c.Request.Context(), accountID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminKeyRequired checks the X-Admin-Key header against the configured
// SHA-256 digest. No configured digest means the admin surface is closed.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminAPIKeyHash == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
		if key == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sum := sha256.Sum256([]byte(key))
		digest := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(s.cfg.AdminAPIKeyHash))) != 1 {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Next()
	}
}

func (s *Server) webhookRateLimit() gin.HandlerFunc {
	return s.rateLimit("webhook", webhookRatePerSecond, webhookBurst, func(c *gin.Context) string {
		return "toolvault:rl:webhook:" + strings.ToLower(strings.TrimSpace(c.Param("provider")))
	})
}

func (s *Server) cartRateLimit() gin.HandlerFunc {
	return s.rateLimit("cart", cartRatePerSecond, cartBurst, func(c *gin.Context) string {
		return "toolvault:rl:cart:" + strings.TrimSpace(c.GetHeader(accountHeader))
	})
}

func (s *Server) rateLimit(scope string, rate float64, burst int, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.Allow(c.Request.Context(), keyFn(c), rate, burst)
		if err != nil {
			s.log.Warn("rate limit check failed",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !res.Allowed {
			obsmetrics.Fulfillment().RecordRateLimitDenied(scope)
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}
