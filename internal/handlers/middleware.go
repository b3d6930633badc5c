package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	headerRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
	ctxTenantID     = "tenantID"

	// TenantCookie identifies the browser whose draws and history are served.
	TenantCookie    = "luckydraw_tenant"
	tenantCookieAge = 365 * 24 * 60 * 60
)

// RequestIDMiddleware ensures every request has a unique X-Request-Id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set(ctxRequestID, id)
		c.Next()
	}
}

// LoggingMiddleware logs each request once it has been served.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("request_id=%s method=%s path=%s status=%d latency_ms=%d",
			c.GetString(ctxRequestID),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}

// TenantMiddleware reads the tenant cookie, issuing a new tenant id on the
// first visit.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := c.Cookie(TenantCookie)
		if err != nil || tenantID == "" {
			tenantID, err = gonanoid.New()
			if err != nil {
				logger.Errorf("Failed to generate tenant id: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: messageInternalError})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(TenantCookie, tenantID, tenantCookieAge, "/", "", false, true)
		}
		c.Set(ctxTenantID, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(ctxTenantID)
}
