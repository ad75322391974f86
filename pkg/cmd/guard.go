package cmd

import (
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
)

// NewGuard returns a Redis backed guard when redisURL is set, so triggers
// stay busy across API replicas, and a process-local guard otherwise.
func NewGuard(redisURL string, ttl time.Duration) (busy.Guard, error) {
	if redisURL == "" {
		return busy.NewMemory(), nil
	}

	return busy.NewRedisFromURL(redisURL, busy.WithTTL(ttl))
}
