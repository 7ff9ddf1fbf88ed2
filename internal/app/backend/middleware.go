package backend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lss/internal/pkg/logger"
)

// LoggingMiddleware 请求日志中间件，探活请求只记录 debug
func LoggingMiddleware(log *logrus.Entry, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if skip[c.Request.URL.Path] {
			log.WithFields(logrus.Fields{"path": c.Request.URL.Path, "status_code": c.Writer.Status()}).Debug("probe request")
			return
		}
		logger.LogAccessRequest(log, c, time.Since(start))
	}
}

// RecoveryMiddleware 捕获 handler panic 并返回 500
func RecoveryMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		log.WithFields(logrus.Fields{
			"type":  logger.ErrorLog,
			"path":  c.Request.URL.Path,
			"panic": recovered,
		}).Error("panic recovered in handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
