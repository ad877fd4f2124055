package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	operatorCtxKey   = "operatorId"
	accessTokenQuery = "access_token"
)

// bearerToken extracts the JWT. The access_token query parameter is only
// consulted when no Authorization header is present. A non-empty second
// result is the rejection message.
func bearerToken(c *gin.Context) (string, string) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		if tok := c.Query(accessTokenQuery); tok != "" {
			return tok, ""
		}
		return "", "missing Authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "invalid Authorization header format"
	}
	return token, ""
}

func (h *Handler) operatorIdMiddleware(c *gin.Context) {
	token, problem := bearerToken(c)
	if problem != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
		return
	}

	operatorId, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(operatorCtxKey, operatorId)
	c.Next()
}
