package conduit

import (
	"math"
	"time"
)

// reconnectDelay computes the wait before reconnect attempt number attempt
// (1-based): min(baseDelay * factor^(attempt-1), maxDelay). No jitter is
// applied; the delays are deterministic so callers can reason about them
// exactly.
func reconnectDelay(attempt int, baseDelay, maxDelay time.Duration, factor float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if baseDelay <= 0 {
		return 0
	}

	scaled := float64(baseDelay) * math.Pow(factor, float64(attempt-1))
	if scaled >= float64(maxDelay) || math.IsInf(scaled, 1) || math.IsNaN(scaled) {
		return maxDelay
	}
	return time.Duration(scaled)
}
