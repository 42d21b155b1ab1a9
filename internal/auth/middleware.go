package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type ctxKey string

// CtxUserID is the gin context key holding the authenticated user id.
const CtxUserID ctxKey = "uid"

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// Authenticate resolves token to a user id.
func Authenticate(secret, token string) (int64, error) {
	claims, err := ParseToken(secret, token)
	if err != nil {
		return 0, err
	}
	if claims.UserId <= 0 {
		return 0, ErrNoSubject
	}
	return claims.UserId, nil
}

func JWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		uid, err := Authenticate(secret, tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Token"})
			return
		}

		c.Set(string(CtxUserID), uid)
		c.Next()
	}
}

// MustUserID returns the authenticated user id, or 0 outside JWTMiddleware.
func MustUserID(c *gin.Context) int64 {
	if v, ok := c.Get(string(CtxUserID)); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
