package handler

import (
	"strconv"

	"workbridge/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP statuses. Conflict-family errors
// keep their message so clients can tell "already accepted" apart from
// "already processed"; everything mapped to 500 gets a generic body.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatusFromError(err)
	msg := err.Error()
	if status == 500 {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// pageParam parses the ?page query parameter, defaulting to 1.
func pageParam(c *gin.Context) (int64, bool) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
