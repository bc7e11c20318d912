package health

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrNoDatabases is reported by the readiness probe while no
// geolocation database is loaded.
var ErrNoDatabases = errors.New("no databases loaded")

// Handler manages health check endpoints
type Handler struct {
	readyFn func() error
}

// NewHandler creates a new health check handler. A nil readyFn is always
// ready.
func NewHandler(readyFn func() error) *Handler {
	return &Handler{readyFn: readyFn}
}

// DatabasesLoaded returns a readiness function that fails while count
// reports zero databases.
func DatabasesLoaded(count func() int) func() error {
	return func() error {
		if count() == 0 {
			return ErrNoDatabases
		}
		return nil
	}
}

// Check runs the readiness function.
func (h *Handler) Check() error {
	if h.readyFn == nil {
		return nil
	}
	return h.readyFn()
}

// Health is the liveness probe endpoint
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready is the readiness probe endpoint
// GET /ready
func (h *Handler) Ready(c *gin.Context) {
	if err := h.Check(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
