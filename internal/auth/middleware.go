package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppchat/edgecore/internal/errs"
)

// ctxUserIDKey is the gin context key GinMiddleware sets on success.
const ctxUserIDKey = "user_id"

// VerifyFunc matches Client.VerifyToken's shape. GinMiddleware takes
// this instead of a concrete *Client so callers holding only the
// narrow AuthVerifier interface (as internal/gateway.Server does) can
// still use it: `auth.GinMiddleware(client.VerifyToken)`.
type VerifyFunc func(ctx context.Context, token string) (userID int64, valid bool, err error)

// GinMiddleware authenticates a REST request the same way the
// WebSocket connect handshake does: an opaque bearer token, checked
// against the same verification the gateway's connect protocol uses.
// It reads the token from the Authorization header ("Bearer <token>")
// or, failing that, a "token" query parameter, matching the header-
// then-bearer-prefix convention the teacher's own auth middleware
// uses.
func GinMiddleware(verify VerifyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		userID, valid, err := verify(c.Request.Context(), token)
		if err != nil || !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}
		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// UserID reads the authenticated user set by GinMiddleware.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
