package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"power6/internal/auth"
	"power6/internal/repository"
)

const userIDKey = "userID"

// requireUser rejects requests without a valid bearer token for a known user.
func (s *Server) requireUser(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		abortUnauthorized(c)
		return
	}

	userID, err := auth.ParseToken(s.secret, strings.TrimSpace(raw))
	if err != nil {
		abortUnauthorized(c)
		return
	}

	if _, err := s.users.FindByID(c.Request.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortUnauthorized(c)
			return
		}
		log.Printf("api: resolve user %d: %v", userID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}
