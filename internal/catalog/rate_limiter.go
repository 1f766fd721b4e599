package catalog

import (
	"math"

	"golang.org/x/time/rate"
)

// NewRateLimiter spaces requests to vendor sites evenly. Non-positive rates
// fall back to one request per second.
func NewRateLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 || math.IsNaN(requestsPerSecond) {
		requestsPerSecond = 1
	}
	burst := int(math.Ceil(requestsPerSecond))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
