// Package forensic holds the bounded, ordered log of forensic events shared
// by every producer in a run.
package forensic

import "time"

// Category classifies a forensic event.
type Category string

// Event categories.
const (
	CategorySimulation    Category = "SIMULATION"
	CategoryPacket        Category = "PACKET"
	CategoryProtocolAlert Category = "PROTOCOL_ALERT"
	CategoryTrafficAlert  Category = "TRAFFIC_ALERT"
)

// Event is an immutable, timestamped record of something the system observed
// or decided. Seq and Timestamp are assigned by the log at append time.
type Event struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
	Details   string    `json:"details"`
}

// Appender is the producer side of the event log.
type Appender interface {
	Append(category Category, details string) Event
}
