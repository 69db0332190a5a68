package webserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func addrFromToken(raw string, secret []byte) (string, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) { return secret, nil })
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	addr, ok := claims["addr"].(string)
	return addr, ok && addr != ""
}

func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		addr, ok := addrFromToken(h[7:], secret)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("addr", addr)
		c.Next()
	}
}

// OptionalAddr fills the addr key when a valid token is supplied and lets
// anonymous requests through.
func OptionalAddr(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			if addr, ok := addrFromToken(h[7:], secret); ok {
				c.Set("addr", addr)
			}
		}
		c.Next()
	}
}
