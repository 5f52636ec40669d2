package middleware

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger logs one line per request. REQUEST_LOGGING_DISABLED=1 turns it off.
func Logger() gin.HandlerFunc {
	disabled := os.Getenv("REQUEST_LOGGING_DISABLED") == "1"

	return func(c *gin.Context) {
		if disabled || zerolog.GlobalLevel() > zerolog.InfoLevel {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= 500 {
			evt = log.Error()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Int("bytes_out", c.Writer.Size()).
			Msg("HTTP request")
	}
}
