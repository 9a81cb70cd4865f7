package respond

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PollInterval is the status-polling hint sent with accepted uploads.
const PollInterval = 2

// JSON writes a JSON response with the given status. Every payload is scoped
// to the caller, so shared caches must not keep it.
func JSON(c *gin.Context, status int, payload any) {
	c.Header("Cache-Control", "private, no-store")
	c.JSON(status, payload)
}

// Accepted writes a 202 for work handed to ingestion, with a Retry-After hint
// for polling the document status.
func Accepted(c *gin.Context, payload any) {
	c.Header("Retry-After", strconv.Itoa(PollInterval))
	JSON(c, http.StatusAccepted, payload)
}
