package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records one handled request
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// HTTPMetrics reports every request to obs. Routes are labelled by their
// pattern so path parameters do not explode cardinality; unmatched requests
// share the "unknown" label.
func HTTPMetrics(obs HTTPObserver, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if obs == nil {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		obs.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
