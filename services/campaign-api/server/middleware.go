package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

// quietPaths are scraped constantly and stay out of the access log.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Observability tags each request with an id and records its latency and
// status in metrics and the access log.
func Observability() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Set("request_id", rid)

		c.Next()

		lat := time.Since(start).Seconds()
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, path).Observe(lat)

		if quietPaths[path] {
			return
		}
		fields := []any{
			"rid", rid,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", lat,
			"client_ip", c.ClientIP(),
		}
		if status >= 500 {
			logx.L().Warnw("http_access", fields...)
			return
		}
		logx.L().Infow("http_access", fields...)
	}
}
