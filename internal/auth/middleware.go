package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// Gin context keys set by Middleware. The string "userID" key is also read by
// the idempotency and rate-limit middleware.
const (
	ctxKeyPrincipal = "principal"
	ctxKeyUserID    = "userID"
)

// Middleware returns a Gin middleware that requires a valid bearer token and
// stores the resolved Principal on the context. A missing or malformed token
// yields 401 unauthenticated; an expired one yields 401 session_expired so
// clients can distinguish "log in" from "log in again".
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthorized(c, "unauthenticated", "missing bearer credential")
			return
		}
		p, err := v.Verify(token)
		if err != nil {
			if err == ErrTokenExpired {
				abortUnauthorized(c, "session_expired", "session expired")
				return
			}
			abortUnauthorized(c, "unauthenticated", "invalid credential")
			return
		}
		c.Set(ctxKeyPrincipal, p)
		c.Set(ctxKeyUserID, p.ID)
		c.Next()
	}
}

// SetPrincipal stores p on the context the same way Middleware does. Used by
// tests and internal tooling that bypass token verification.
func SetPrincipal(c *gin.Context, p domain.Principal) {
	c.Set(ctxKeyPrincipal, p)
	c.Set(ctxKeyUserID, p.ID)
}

// PrincipalFrom returns the Principal stored by Middleware, if any.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(ctxKeyPrincipal)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, code, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
