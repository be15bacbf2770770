package eventstore

import (
	"context"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
)

// RelayWrapper makes a Store satisfy the nostr.QuerierPublisher
// interface, applying the kind-dependent save-or-replace policy.
type RelayWrapper struct {
	Store
}

var _ nostr.QuerierPublisher = (*RelayWrapper)(nil)

func (w RelayWrapper) Publish(ctx context.Context, evt nostr.Event) error {
	if evt.Kind.IsEphemeral() {
		// do not store ephemeral events
		return nil
	}

	if evt.Kind.IsRegular() {
		// regular events are just saved directly
		if err := w.SaveEvent(ctx, evt); err != nil && err != ErrDupEvent {
			return fmt.Errorf("failed to save: %w", err)
		}
		return nil
	}

	// others are replaced
	if err := w.Store.ReplaceEvent(ctx, evt); err != nil && err != ErrDupEvent {
		return fmt.Errorf("failed to replace: %w", err)
	}

	return nil
}

func (w RelayWrapper) QueryEvents(ctx context.Context, filter nostr.Filter) (chan nostr.Event, error) {
	seq, err := w.Store.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	ch := make(chan nostr.Event)
	go func() {
		defer close(ch)
		for evt := range seq {
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
