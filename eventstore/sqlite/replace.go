package sqlite

import (
	"context"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/OpenAgentsInc/pylon/eventstore/internal"
)

// ReplaceEvent atomically supersedes any previous replaceable or
// addressable event with the same (pubkey, kind[, d-tag]) coordinate.
// If the stored event wins the tie-break the candidate is not stored
// and ErrDupEvent is returned, so callers know not to broadcast it.
func (b *SQLiteBackend) ReplaceEvent(ctx context.Context, evt nostr.Event) error {
	conn, err := b.checkout(ctx, b.writer)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT id, pubkey, created_at, kind, tags, content, sig FROM event WHERE pubkey = ? AND kind = ?`
	params := []any{evt.PubKey.Hex(), int(evt.Kind)}
	if evt.Kind.IsAddressable() {
		query += ` AND d_tag = ?`
		params = append(params, evt.Tags.GetD())
	}

	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("failed to query previous events: %w", err)
	}

	shouldStore := true
	superseded := make([]string, 0, 1)
	for rows.Next() {
		previous, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if internal.IsOlder(previous, evt) {
			superseded = append(superseded, previous.ID.Hex())
		} else {
			shouldStore = false
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read previous events: %w", err)
	}
	rows.Close()

	if !shouldStore {
		return eventstore.ErrDupEvent
	}

	for _, id := range superseded {
		if err := deleteIn(ctx, tx, id); err != nil {
			return err
		}
	}

	if err := saveIn(ctx, tx, evt); err != nil {
		if err == eventstore.ErrDupEvent {
			// resubmission of the exact event we already hold
			if err := tx.Commit(); err != nil {
				return err
			}
			return eventstore.ErrDupEvent
		}
		return err
	}

	return tx.Commit()
}
