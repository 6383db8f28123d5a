package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaStartKey    = "response_meta_start"
	metaCacheHitKey = "response_meta_cache_hit"
)

// WithResponseMeta stamps the request start time used for processing_time_ms.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the response payload came from the analytics cache.
func SetCacheHit(c *gin.Context, hit bool) {
	c.Set(metaCacheHitKey, hit)
}

// ExtractMeta builds the envelope meta for the current request. Without a
// stamped start time processing_time_ms is omitted so callers can supply their own.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := map[string]interface{}{}
	if c == nil {
		return meta
	}
	if hit, ok := c.Get(metaCacheHitKey); ok {
		meta["cache_hit"] = hit
	}
	if start, ok := c.Get(metaStartKey); ok {
		if ts, ok := start.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(ts).Milliseconds()
		}
	}
	return meta
}
