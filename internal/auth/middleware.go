package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pathak/internal/account"
)

const claimsKey = "claims"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"type": "error", "code": code, "message": message})
}

// RequireUser enforces a bearer access token and stores its claims.
func RequireUser(issuer Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Please log in to continue.")
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := issuer.Parse(tokenStr, KindAccess)
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Your session has ended. Please log in again.")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole allows only callers holding one of roles. Must run after RequireUser.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Please log in to continue.")
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "You are not allowed to do that.")
	}
}

// ClaimsFrom returns the claims stored by RequireUser.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// ActorFrom returns the caller, or a zero actor on unauthenticated routes.
func ActorFrom(c *gin.Context) account.Actor {
	claims, _ := ClaimsFrom(c)
	return claims.Actor()
}
