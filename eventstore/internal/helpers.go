package internal

import (
	"bytes"

	"github.com/OpenAgentsInc/pylon"
)

// IsOlder reports whether previous loses to next under the replaceable
// tie-break: later created_at wins, and on equal timestamps the
// lexicographically smaller id wins.
func IsOlder(previous, next nostr.Event) bool {
	return previous.CreatedAt < next.CreatedAt ||
		(previous.CreatedAt == next.CreatedAt && bytes.Compare(previous.ID[:], next.ID[:]) == 1)
}
