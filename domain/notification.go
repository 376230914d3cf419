package domain

import "time"

// Notification is a piece of text pushed to a single identity.
// While the identity has no live connection it lives in the durable
// per-identity queue and is deleted after a successful drain.
type Notification struct {
	Text string
	Date time.Time
}
