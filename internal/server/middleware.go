package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/metrics"
)

func bodySizeLimiter(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// requestMiddleware logs every request and records its latency by route.
func requestMiddleware(log logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		code := c.Writer.Status()
		m.ObserveRequest(route, c.Request.Method, strconv.Itoa(code), elapsed)
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", code,
			"elapsed", elapsed.Round(time.Microsecond))
	}
}

// errorMiddleware renders the last handler error as {"error": message}.
func errorMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
		} else {
			log.Warn("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrNoFallback),
		errors.Is(err, domain.ErrEmbeddingTimeout),
		errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrLLMUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
