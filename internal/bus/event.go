package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-namespaced: "message.*" for message-set changes,
// "room.*" for roster changes, "session.*" for lifecycle and protocol
// notices, "vcard.*" for profile updates.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
