package badger

import (
	"context"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerBackend) SaveEvent(_ context.Context, evt nostr.Event) error {
	if err := boundsCheck(evt); err != nil {
		return err
	}

	return b.Update(func(txn *badger.Txn) error {
		// query event by id to ensure we don't save duplicates
		prefix := make([]byte, 1+8)
		prefix[0] = indexIdPrefix
		copy(prefix[1:], evt.ID[0:8])
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		it.Seek(prefix)
		if it.ValidForPrefix(prefix) {
			return eventstore.ErrDupEvent
		}

		return b.save(txn, evt)
	})
}

func (b *BadgerBackend) save(txn *badger.Txn, evt nostr.Event) error {
	buf, err := evt.MarshalJSON()
	if err != nil {
		return err
	}

	idx := b.Serial()
	if err := txn.Set(idx, buf); err != nil {
		return err
	}

	for k := range getIndexKeysForEvent(evt, idx[1:]) {
		if err := txn.Set(k, nil); err != nil {
			return err
		}
	}

	return nil
}
