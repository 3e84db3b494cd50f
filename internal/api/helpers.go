package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseLimit parses the limit query param, falling back to defaultLimit and
// capping at maxLimit.
func parseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondNotFound sends a 404 with resource not found message.
func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondInternalError records err on the context for the request log and
// sends a 500 with message.
func respondInternalError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, message)
}
