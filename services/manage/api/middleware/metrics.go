package middleware

import (
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics returns a gin middleware recording request latencies
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RequestDurationSecond.
			WithLabelValues(endpoint, c.Request.Method).
			Observe(time.Since(start).Seconds())
	}
}
