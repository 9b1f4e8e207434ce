package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studhelper/studhelper/internal/monitoring"
)

const defaultRedisTimeout = 2 * time.Second

// Redis returns a readiness probe for the session backend. A nil client means redis is not in use.
func Redis(client redis.UniversalClient, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()

		return monitoring.ResultFromError("redis", client.Ping(probeCtx).Err(), time.Since(start))
	})
}
