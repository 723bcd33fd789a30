package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the standard logger.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Printf("%s %s %d %s %s", c.Request.Method, path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), c.ClientIP())
		for _, e := range c.Errors {
			log.Printf("%s %s error: %v", c.Request.Method, path, e.Err)
		}
	}
}
