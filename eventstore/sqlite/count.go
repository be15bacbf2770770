package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/OpenAgentsInc/pylon"
)

// CountEvents runs on the meta pool so statistics queries never compete
// with REQ replay for reader connections.
func (b *SQLiteBackend) CountEvents(ctx context.Context, filter nostr.Filter) (int64, error) {
	conds, params := whereClauses(filter)

	query := `SELECT COUNT(*) FROM event`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	conn, err := b.checkout(ctx, b.meta)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var count int64
	if err := conn.QueryRowContext(ctx, query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// Stats summarizes the stored dataset. It shares the meta pool with
// CountEvents.
type Stats struct {
	Events       int64
	Pubkeys      int64
	OldestUnix   int64
	NewestUnix   int64
	DatabaseSize int64
}

func (b *SQLiteBackend) Stats(ctx context.Context) (Stats, error) {
	conn, err := b.checkout(ctx, b.meta)
	if err != nil {
		return Stats{}, err
	}
	defer conn.Close()

	var st Stats
	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT pubkey),
		       COALESCE(MIN(created_at), 0), COALESCE(MAX(created_at), 0)
		FROM event`).
		Scan(&st.Events, &st.Pubkeys, &st.OldestUnix, &st.NewestUnix)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to gather stats: %w", err)
	}

	var pageCount, pageSize int64
	if err := conn.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return Stats{}, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := conn.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return Stats{}, fmt.Errorf("failed to read page_size: %w", err)
	}
	st.DatabaseSize = pageCount * pageSize

	return st, nil
}
