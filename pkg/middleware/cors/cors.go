package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Options configures the CORS middleware. An empty AllowedOrigins list allows
// any origin.
type Options struct {
	AllowedOrigins []string
	AllowedMethods []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

var (
	defaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultExposed = []string{"X-Request-ID", "Content-Disposition"}
)

// New returns a CORS middleware for the given origins with default methods.
func New(allowedOrigins []string) gin.HandlerFunc {
	return WithOptions(Options{AllowedOrigins: allowedOrigins})
}

// WithOptions returns a CORS middleware configured by opts.
func WithOptions(opts Options) gin.HandlerFunc {
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = defaultMethods
	}
	if len(opts.ExposedHeaders) == 0 {
		opts.ExposedHeaders = defaultExposed
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 10 * time.Minute
	}

	allowAll := len(opts.AllowedOrigins) == 0
	originSet := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}
	methods := strings.Join(opts.AllowedMethods, ", ")
	exposed := strings.Join(opts.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(int(opts.MaxAge.Seconds()))

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")
		allowed := false
		switch {
		case origin == "" && allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			_, listed := originSet[strings.TrimRight(origin, "/")]
			allowed = allowAll || listed
			if allowed {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		header.Add("Vary", "Origin")
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-Request-ID")
		header.Set("Access-Control-Allow-Methods", methods)
		header.Set("Access-Control-Expose-Headers", exposed)
		header.Set("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			if origin != "" && !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
