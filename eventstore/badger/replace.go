package badger

import (
	"context"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/OpenAgentsInc/pylon/eventstore/internal"
	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerBackend) ReplaceEvent(_ context.Context, evt nostr.Event) error {
	if err := boundsCheck(evt); err != nil {
		return err
	}

	return b.Update(func(txn *badger.Txn) error {
		// find all stored events at the same replacement coordinate
		d := evt.Tags.GetD()

		it := txn.NewIterator(badger.IteratorOptions{
			Prefix: []byte{rawEventStorePrefix},
		})
		defer it.Close()

		shouldStore := true
		superseded := make([]nostr.ID, 0, 1)
		for it.Seek([]byte{rawEventStorePrefix}); it.ValidForPrefix([]byte{rawEventStorePrefix}); it.Next() {
			var previous nostr.Event
			if err := it.Item().Value(func(val []byte) error {
				return previous.UnmarshalJSON(val)
			}); err != nil {
				return fmt.Errorf("failed to decode event %x: %w", it.Item().Key(), err)
			}

			if previous.PubKey != evt.PubKey || previous.Kind != evt.Kind {
				continue
			}
			if evt.Kind.IsAddressable() && previous.Tags.GetD() != d {
				continue
			}

			if internal.IsOlder(previous, evt) {
				superseded = append(superseded, previous.ID)
			} else {
				shouldStore = false
			}
		}
		it.Close()

		if !shouldStore {
			// the stored event wins the tie-break (or this is an
			// exact resubmission), so the candidate is not stored
			return eventstore.ErrDupEvent
		}

		for _, id := range superseded {
			if _, err := b.delete(txn, id); err != nil {
				return err
			}
		}

		return b.save(txn, evt)
	})
}
