package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/utils"
)

// RateLimit allows perMinute requests per client IP. perMinute <= 0 is a passthrough.
func RateLimit(perMinute int, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		log.Debug("RateLimit: disabled, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return utils.ClientIP(r, trustProxy), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			log.Warn("rate limit exceeded",
				logger.String("remote_ip", utils.ClientIP(r, trustProxy)),
				logger.String("path", r.URL.Path))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}
