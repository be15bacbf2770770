package badger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerBackend) CountEvents(_ context.Context, filter nostr.Filter) (int64, error) {
	var count int64 = 0

	var since uint32 = 0
	if filter.Since > 0 {
		since = uint32(filter.Since)
	}

	err := b.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Reverse: true,
			Prefix:  []byte{indexCreatedAtPrefix},
		})
		defer it.Close()

		start := []byte{indexCreatedAtPrefix, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		for it.Seek(start); it.ValidForPrefix([]byte{indexCreatedAtPrefix}); it.Next() {
			key := it.Item().Key()
			if binary.BigEndian.Uint32(key[1:1+4]) < since {
				break
			}

			idx := make([]byte, 5)
			idx[0] = rawEventStorePrefix
			copy(idx[1:], key[1+4:])

			item, err := txn.Get(idx)
			if err != nil {
				return fmt.Errorf("failed to get %x from raw event store: %w", idx, err)
			}

			var evt nostr.Event
			if err := item.Value(func(val []byte) error {
				return evt.UnmarshalJSON(val)
			}); err != nil {
				return fmt.Errorf("failed to decode event %x: %w", idx, err)
			}

			if filter.Matches(evt) {
				count++
			}
		}

		return nil
	})

	return count, err
}
