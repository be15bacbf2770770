package badger

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/dgraph-io/badger/v4"
)

var _ eventstore.Store = (*BadgerBackend)(nil)

const (
	rawEventStorePrefix  byte = 1
	indexIdPrefix        byte = 2
	indexCreatedAtPrefix byte = 3
)

// BadgerBackend stores events in a badger database. Events are kept
// under a monotonic 4-byte serial; an id index and a created_at index
// point back at the serial. Queries walk the created_at index in
// reverse and post-filter, which is fine for the moderate datasets
// this backend targets.
type BadgerBackend struct {
	Path string

	// MaxLimit is enforced on every query that doesn't carry a
	// smaller explicit limit.
	MaxLimit int

	*badger.DB
	seq *badger.Sequence
}

func (b *BadgerBackend) Init() error {
	if b.MaxLimit == 0 {
		b.MaxLimit = 500
	}

	db, err := badger.Open(badger.DefaultOptions(b.Path).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("failed to open badger at %s: %w", b.Path, err)
	}
	b.DB = db

	b.seq, err = db.GetSequence([]byte("events"), 1000)
	if err != nil {
		return fmt.Errorf("failed to get serial sequence: %w", err)
	}

	return nil
}

func (b *BadgerBackend) Close() {
	b.seq.Release()
	b.DB.Close()
}

// Serial returns the next raw event store key: the raw store prefix
// followed by a big-endian 4-byte serial.
func (b *BadgerBackend) Serial() []byte {
	v, _ := b.seq.Next()
	vb := make([]byte, 5)
	vb[0] = rawEventStorePrefix
	binary.BigEndian.PutUint32(vb[1:], uint32(v))
	return vb
}

// getIndexKeysForEvent computes every index key that points at the
// event stored under serial.
func getIndexKeysForEvent(evt nostr.Event, serial []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		{
			// by id
			k := make([]byte, 1+8+4)
			k[0] = indexIdPrefix
			copy(k[1:], evt.ID[0:8])
			copy(k[1+8:], serial)
			if !yield(k) {
				return
			}
		}
		{
			// by created_at
			k := make([]byte, 1+4+4)
			k[0] = indexCreatedAtPrefix
			binary.BigEndian.PutUint32(k[1:], uint32(evt.CreatedAt))
			copy(k[1+4:], serial)
			if !yield(k) {
				return
			}
		}
	}
}

func boundsCheck(evt nostr.Event) error {
	if evt.CreatedAt > math.MaxUint32 || evt.CreatedAt < 0 {
		return fmt.Errorf("event with values out of expected boundaries")
	}
	return nil
}
