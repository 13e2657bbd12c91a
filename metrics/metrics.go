// Package metrics defines the recorder used to count payment events and
// observe operation latency.
package metrics

import "time"

// Recorder receives facilitator events.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
