package nostr

import "time"

// Timestamp is a unix timestamp in seconds.
type Timestamp int64

// Now returns the current unix timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

// Time converts a Timestamp into a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0)
}
