package chat

import (
	"fmt"
	"strings"
	"time"
)

const MetricsMarker = "\n\n[METRICS]"

type Metrics struct {
	Seconds float64
	Tokens  int
}

// Trailer is the final fragment of every reply.
func Trailer(elapsed time.Duration, tokens int) string {
	return fmt.Sprintf("%s Time: %.2fs | Tokens: %d", MetricsMarker, elapsed.Seconds(), tokens)
}

// StripMetrics drops the metrics trailer and everything after it.
func StripMetrics(reply string) string {
	if i := strings.Index(reply, MetricsMarker); i >= 0 {
		return reply[:i]
	}
	return reply
}

// ParseMetrics reads the trailer back out of a full reply.
func ParseMetrics(reply string) (Metrics, bool) {
	i := strings.LastIndex(reply, MetricsMarker)
	if i < 0 {
		return Metrics{}, false
	}
	var m Metrics
	if _, err := fmt.Sscanf(reply[i+len(MetricsMarker):], " Time: %fs | Tokens: %d", &m.Seconds, &m.Tokens); err != nil {
		return Metrics{}, false
	}
	return m, true
}
