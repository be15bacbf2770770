package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
)

func (b *SQLiteBackend) DeleteEvent(ctx context.Context, id nostr.ID) error {
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

	if err := deleteIn(ctx, tx, id.Hex()); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteIn(ctx context.Context, tx *sql.Tx, idHex string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_index WHERE event_id = ?`, idHex); err != nil {
		return fmt.Errorf("failed to delete tag rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM event WHERE id = ?`, idHex); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
