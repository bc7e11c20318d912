// Package middleware holds the gin middleware shared by the HTTP routes.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/geodat"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin context key of the request id.
	RequestIDKey = "request_id"

	// GeoKey is the gin context key of the client's country record.
	GeoKey = "geoip"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger creates a Gin middleware that logs using slog
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
		}
		if id := c.GetString(RequestIDKey); id != "" {
			attrs = append(attrs, "request_id", id)
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}

// Geo looks up the client address and stores its country record under
// GeoKey. Misses and failures leave the key unset.
func Geo(lookup data.Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		rec, err := lookup.Country(c.Request.Context(), ip)
		if err != nil {
			slog.Warn("client geolocation failed", "ip", ip, "error", err)
		} else if rec != nil {
			c.Set(GeoKey, rec.In(geodat.UTF8))
		}
		c.Next()
	}
}

// Country returns the record Geo stored for the request.
func Country(c *gin.Context) (*geodat.CountryRecord, bool) {
	v, ok := c.Get(GeoKey)
	if !ok {
		return nil, false
	}
	rec, ok := v.(*geodat.CountryRecord)
	return rec, ok
}

// WhoAmI handles GET /api/v1/whoami with the record Geo found for the
// caller.
func WhoAmI(c *gin.Context) {
	rec, ok := Country(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"ip":    c.ClientIP(),
			"error": "no record found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ip":      c.ClientIP(),
		"country": rec,
	})
}
