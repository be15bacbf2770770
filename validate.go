package nostr

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Resource limits protecting the relay from oversized input.
const (
	MaxEventSize            = 128 * 1024
	MaxContentLength        = 64 * 1024
	MaxTags                 = 2000
	MaxTagLength            = 1000
	MaxSubscriptionIDLength = 64
	MaxQueryLimit           = 5000

	maxFutureSeconds = 365 * 24 * 60 * 60      // 1 year
	maxPastSeconds   = 10 * 365 * 24 * 60 * 60 // 10 years
)

var (
	// ErrMalformed means the input was structurally invalid. It is
	// fatal to the frame that carried it, never to the connection.
	ErrMalformed = errors.New("malformed event")

	// ErrIDMismatch means the claimed id does not match the hash of
	// the event's canonical serialization.
	ErrIDMismatch = errors.New("id does not match the event")

	// ErrBadSignature means the signature does not verify against the
	// event's pubkey.
	ErrBadSignature = errors.New("signature is invalid")
)

// ParseEvent decodes raw wire bytes into an Event and validates it
// fully: structural rules, recomputed id and signature. It does no I/O
// and is deterministic for identical input bytes.
func ParseEvent(raw []byte) (Event, error) {
	var evt Event

	if len(raw) > MaxEventSize {
		return evt, fmt.Errorf("event too large (%d bytes): %w", len(raw), ErrMalformed)
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return evt, fmt.Errorf("event is not a json object: %w", ErrMalformed)
	}

	// hex fields must be validated on the raw input: the binary
	// representation can't distinguish "aa" from "AA" or from absent.
	if idh := parsed.Get("id").String(); !IsValid32ByteHex(idh) {
		return evt, fmt.Errorf("\"id\" must be 64 lowercase hex characters: %w", ErrMalformed)
	}
	if pkh := parsed.Get("pubkey").String(); !IsValid32ByteHex(pkh) {
		return evt, fmt.Errorf("\"pubkey\" must be 64 lowercase hex characters: %w", ErrMalformed)
	}
	if sigh := parsed.Get("sig").String(); len(sigh) != 128 || !isLowerHex(sigh) {
		return evt, fmt.Errorf("\"sig\" must be 128 lowercase hex characters: %w", ErrMalformed)
	}
	if !parsed.Get("created_at").Exists() {
		return evt, fmt.Errorf("missing \"created_at\": %w", ErrMalformed)
	}

	if err := evt.UnmarshalJSON(raw); err != nil {
		return evt, fmt.Errorf("%s: %w", err, ErrMalformed)
	}

	if err := evt.Validate(); err != nil {
		return evt, err
	}

	return evt, nil
}

// Validate checks the event's structural limits, recomputes the id and
// verifies the signature.
func (evt Event) Validate() error {
	if err := evt.validateStructure(); err != nil {
		return err
	}

	if !evt.CheckID() {
		return ErrIDMismatch
	}

	if !evt.VerifySignature() {
		return ErrBadSignature
	}

	return nil
}

func (evt Event) validateStructure() error {
	now := Now()
	if evt.CreatedAt > now+maxFutureSeconds {
		return fmt.Errorf("\"created_at\" too far in the future: %w", ErrMalformed)
	}
	if evt.CreatedAt < now-maxPastSeconds {
		return fmt.Errorf("\"created_at\" too far in the past: %w", ErrMalformed)
	}

	if len(evt.Tags) > MaxTags {
		return fmt.Errorf("too many tags (max %d): %w", MaxTags, ErrMalformed)
	}
	for i, tag := range evt.Tags {
		if len(tag) > MaxTagLength {
			return fmt.Errorf("tag %d too long (max %d elements): %w", i, MaxTagLength, ErrMalformed)
		}
	}

	if len(evt.Content) > MaxContentLength {
		return fmt.Errorf("content too long (max %d bytes): %w", MaxContentLength, ErrMalformed)
	}

	return nil
}

// ValidateFilter checks filter parameters against protocol and relay
// limits before a subscription is accepted.
func ValidateFilter(filter Filter) error {
	for _, id := range filter.IDs {
		if id == "" || len(id) > 64 || !isLowerHex(id) {
			return fmt.Errorf("invalid: filter id '%s' must be up to 64 lowercase hex characters", id)
		}
	}

	for _, author := range filter.Authors {
		if author == "" || len(author) > 64 || !isLowerHex(author) {
			return fmt.Errorf("invalid: filter author '%s' must be up to 64 lowercase hex characters", author)
		}
	}

	if filter.Since != 0 && filter.Until != 0 && filter.Since > filter.Until {
		return fmt.Errorf("invalid: filter since must be <= until")
	}

	if filter.Limit < 0 || filter.Limit > MaxQueryLimit {
		return fmt.Errorf("invalid: filter limit out of range (max %d)", MaxQueryLimit)
	}

	for tagName, tagValues := range filter.Tags {
		if len(tagName) != 1 || !isASCIILetter(tagName[0]) {
			return fmt.Errorf("invalid: tag filter key '#%s' should be a single letter", tagName)
		}
		if len(tagValues) == 0 {
			return fmt.Errorf("invalid: tag filter '#%s' values cannot be empty", tagName)
		}
		if tagName == "e" || tagName == "p" {
			for _, value := range tagValues {
				if !IsValid32ByteHex(value) {
					return fmt.Errorf("invalid: tag filter '#%s' value must be 64 lowercase hex characters", tagName)
				}
			}
		}
	}

	return nil
}

// ValidateSubscriptionID enforces the subscription id rules: non-empty,
// at most 64 characters of printable ASCII.
func ValidateSubscriptionID(subID string) error {
	if subID == "" {
		return fmt.Errorf("invalid: subscription id cannot be empty")
	}
	if len(subID) > MaxSubscriptionIDLength {
		return fmt.Errorf("invalid: subscription id too long (max %d chars)", MaxSubscriptionIDLength)
	}
	for i := 0; i < len(subID); i++ {
		if subID[i] < 0x20 || subID[i] > 0x7e {
			return fmt.Errorf("invalid: subscription id must be printable ASCII")
		}
	}
	return nil
}
