package badger

import (
	"context"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerBackend) DeleteEvent(_ context.Context, id nostr.ID) error {
	return b.Update(func(txn *badger.Txn) error {
		_, err := b.delete(txn, id)
		return err
	})
}

func (b *BadgerBackend) delete(txn *badger.Txn, id nostr.ID) (bool, error) {
	idx := make([]byte, 1, 5)
	idx[0] = rawEventStorePrefix

	// query event by id to get its serial, grabbing the raw event too
	// so its index keys can be recomputed
	prefix := make([]byte, 1+8)
	prefix[0] = indexIdPrefix
	copy(prefix[1:], id[0:8])

	var evt nostr.Event

	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	it.Seek(prefix)
	if it.ValidForPrefix(prefix) {
		idx = append(idx, it.Item().Key()[1+8:]...)
	}
	it.Close()

	// no serial found, this event doesn't exist
	if len(idx) == 1 {
		return false, nil
	}

	item, err := txn.Get(idx)
	if err != nil {
		return false, fmt.Errorf("failed to get %x to delete: %w", idx, err)
	}
	if err := item.Value(func(val []byte) error {
		return evt.UnmarshalJSON(val)
	}); err != nil {
		return false, fmt.Errorf("failed to decode event %x to delete: %w", idx, err)
	}

	for k := range getIndexKeysForEvent(evt, idx[1:]) {
		if err := txn.Delete(k); err != nil {
			return false, err
		}
	}

	return true, txn.Delete(idx)
}
