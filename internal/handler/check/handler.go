package check

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/query"
)

// CheckRequest represents the JSON body for a country check.
type CheckRequest struct {
	IP               string   `json:"ip" binding:"required"`
	AllowedCountries []string `json:"allowed_countries" binding:"required,min=1"`
}

// CheckResponse represents the JSON response for a country check.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Country string `json:"country"`
	Error   string `json:"error"`
}

// Handler manages IP geolocation check endpoints.
type Handler struct {
	lookup data.Lookup
}

// NewHandler creates a new check handler with the given Lookup.
func NewHandler(lookup data.Lookup) *Handler {
	return &Handler{lookup: lookup}
}

// Valid reports whether q is an address or hostname worth looking up.
func Valid(q string) bool {
	switch v := query.Classify(q).(type) {
	case query.NumericAddress:
		return v.Strict()
	case query.HostnameToken:
		return true
	default:
		return false
	}
}

// Country resolves q to its country code. An empty code means no
// database has a record for q.
func Country(ctx context.Context, lookup data.Lookup, q string) (string, error) {
	rec, err := lookup.Country(ctx, q)
	if err != nil || rec == nil || rec.Code == nil {
		return "", err
	}
	return *rec.Code, nil
}

// Allowed reports whether country is in the allowed list, ignoring case.
func Allowed(country string, allowed []string) bool {
	if country == "" {
		return false
	}
	return slices.ContainsFunc(allowed, func(ac string) bool {
		return strings.EqualFold(ac, country)
	})
}

// Check handles POST /api/v1/check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid request: " + err.Error(),
		})
		return
	}

	slog.Debug("check request received", "ip", req.IP, "allowed_countries", req.AllowedCountries)

	if !Valid(req.IP) {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid IP address",
		})
		return
	}

	country, err := Country(c.Request.Context(), h.lookup, req.IP)
	if err != nil {
		slog.Error("country lookup failed", "ip", req.IP, "error", err)
		c.JSON(http.StatusInternalServerError, CheckResponse{
			Error: "lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Allowed: Allowed(country, req.AllowedCountries),
		Country: country,
	})
}
