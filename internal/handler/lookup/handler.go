// Package lookup serves country and city records over HTTP.
package lookup

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/geodat"
)

// ErrorResponse is returned for misses and failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler manages record lookup endpoints.
type Handler struct {
	lookup data.Lookup
}

// NewHandler creates a new lookup handler with the given Lookup.
func NewHandler(lookup data.Lookup) *Handler {
	return &Handler{lookup: lookup}
}

// Register adds the lookup routes to rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/country/:query", h.Country)
	rg.GET("/city/:query", h.City)
}

// Country handles GET /api/v1/country/:query
func (h *Handler) Country(c *gin.Context) {
	q := c.Param("query")
	rec, err := h.lookup.Country(c.Request.Context(), q)
	if err != nil {
		slog.Error("country lookup failed", "query", q, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "lookup failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no record found"})
		return
	}
	// JSON bodies are always UTF-8 whatever the database charset.
	c.JSON(http.StatusOK, rec.In(geodat.UTF8))
}

// City handles GET /api/v1/city/:query
func (h *Handler) City(c *gin.Context) {
	q := c.Param("query")
	rec, err := h.lookup.City(c.Request.Context(), q)
	if err != nil {
		slog.Error("city lookup failed", "query", q, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "lookup failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no record found"})
		return
	}
	c.JSON(http.StatusOK, rec.In(geodat.UTF8))
}
