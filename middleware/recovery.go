package middleware

import (
	"gradient/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware turns a handler panic into a 500 and logs it.
func RecoveryMiddleware() gin.HandlerFunc {
	log := utils.Component("http")
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"panic":  err,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				}).Error("handler panicked")
				utils.TrackError("http", "panic")
				if !c.Writer.Written() {
					utils.InternalError(c, "Internal server error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// LoggingMiddleware writes one line per request at debug level.
func LoggingMiddleware() gin.HandlerFunc {
	log := utils.Component("http")
	return func(c *gin.Context) {
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}
