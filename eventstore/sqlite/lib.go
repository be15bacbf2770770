package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var _ eventstore.Store = (*SQLiteBackend)(nil)

// SQLiteBackend stores events in a SQLite database behind three
// separate connection pools: a single-connection writer pool (SQLite
// serializes writes anyway), a reader pool sized for concurrent REQ
// replay, and a meta pool for counting/statistics so heavy reporting
// never starves the client-facing pools.
type SQLiteBackend struct {
	Path string

	// MaxLimit is enforced on every query that doesn't carry a
	// smaller explicit limit.
	MaxLimit int

	// ReaderPoolSize and MetaPoolSize default to 4 and 1.
	ReaderPoolSize int
	MetaPoolSize   int

	// PoolTimeout bounds how long a pool checkout may block before
	// failing with ErrPoolExhausted. Defaults to 5s.
	PoolTimeout time.Duration

	Logger *zerolog.Logger

	writer *sql.DB
	reader *sql.DB
	meta   *sql.DB
}

func (b *SQLiteBackend) Init() error {
	if b.MaxLimit == 0 {
		b.MaxLimit = 500
	}
	if b.ReaderPoolSize == 0 {
		b.ReaderPoolSize = 4
	}
	if b.MetaPoolSize == 0 {
		b.MetaPoolSize = 1
	}
	if b.PoolTimeout == 0 {
		b.PoolTimeout = 5 * time.Second
	}

	dsn := "file:" + b.Path + "?_journal_mode=WAL&_busy_timeout=4000&_synchronous=NORMAL"

	writer, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open writer pool: %w", err)
	}
	writer.SetMaxOpenConns(1)
	b.writer = writer

	reader, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open reader pool: %w", err)
	}
	reader.SetMaxOpenConns(b.ReaderPoolSize)
	b.reader = reader

	meta, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open meta pool: %w", err)
	}
	meta.SetMaxOpenConns(b.MetaPoolSize)
	b.meta = meta

	return b.migrate()
}

func (b *SQLiteBackend) Close() {
	b.writer.Close()
	b.reader.Close()
	b.meta.Close()
}

// checkout acquires a connection from the given pool, blocking up to
// PoolTimeout, then failing with ErrPoolExhausted. The caller must
// close the returned conn.
func (b *SQLiteBackend) checkout(ctx context.Context, pool *sql.DB) (*sql.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, b.PoolTimeout)
	defer cancel()

	conn, err := pool.Conn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eventstore.ErrPoolExhausted
		}
		return nil, err
	}
	return conn, nil
}

func sigHex(evt nostr.Event) string {
	return hex.EncodeToString(evt.Sig[:])
}

func decodeSigHex(s string, dst *[64]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 64 {
		return fmt.Errorf("corrupt sig in row")
	}
	copy(dst[:], raw)
	return nil
}
