package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
)

func (b *SQLiteBackend) SaveEvent(ctx context.Context, evt nostr.Event) error {
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

	if err := saveIn(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

func saveIn(ctx context.Context, tx *sql.Tx, evt nostr.Event) error {
	tagsj, err := json.Marshal(evt.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO event (id, pubkey, created_at, kind, tags, content, sig, d_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID.Hex(), evt.PubKey.Hex(), int64(evt.CreatedAt), int(evt.Kind),
		string(tagsj), evt.Content, sigHex(evt), evt.Tags.GetD(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eventstore.ErrDupEvent
	}

	for letter, values := range nostr.BuildTagIndex(evt.Tags) {
		for _, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tag_index (event_id, name, value) VALUES (?, ?, ?)`,
				evt.ID.Hex(), string(letter), value,
			); err != nil {
				return fmt.Errorf("failed to index tag: %w", err)
			}
		}
	}

	return nil
}
