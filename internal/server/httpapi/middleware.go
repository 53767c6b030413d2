package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Authenticator resolves a bearer access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*access.Principal, error)
}

// requestID propagates a caller-supplied request id or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if p := access.FromContext(c.Request.Context()); p != nil {
			args = append(args, "user_id", p.UserID)
		}
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			args = append(args, "error", err)
			if common.KindOf(err) == common.KindInternal {
				log.Error(c.Request.Context(), "request failed", args...)
				return
			}
		}
		log.Info(c.Request.Context(), "request", args...)
	}
}

// recovery turns a handler panic into a 500 with the usual error body.
func recovery(log logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		log.Error(c.Request.Context(), "handler panic", "panic", rec, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
		writeError(c, common.ErrorInternal)
	})
}

// authRequired rejects requests without a valid bearer token and stores
// the principal in the request context.
func authRequired(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(c, common.Unauthorized("missing bearer token"))
			return
		}
		p, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func principal(c *gin.Context) *access.Principal {
	return access.FromContext(c.Request.Context())
}
