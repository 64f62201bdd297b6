package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/rclone-api-go/internal/models"
	"github.com/denysvitali/rclone-api-go/pkg/errcodes"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	bearerPrefix    = "Bearer "
)

// authMiddleware checks the Authorization header against the configured bearer token.
// An empty expected token matches nothing.
func authMiddleware(expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			abortWithError(c, errcodes.Unauthenticated("Invalid Authorization header format"))
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			abortWithError(c, errcodes.Unauthenticated("Invalid token"))
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	e := errcodes.From(err)
	c.AbortWithStatusJSON(e.HTTPCode, models.ErrorResponse{Error: e.Message})
}

// requestIDMiddleware propagates or assigns an X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// recoveryHandler answers panics with a JSON 500
func recoveryHandler(logger *logrus.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDKey),
		}).Errorf("Exception occurred: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"request_id": c.GetString(requestIDKey),
		})

		if raw != "" {
			entry = entry.WithField("query", raw)
		}

		if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request completed")
		}
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
