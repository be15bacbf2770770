package sqlite

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS event (
  id         TEXT    PRIMARY KEY,
  pubkey     TEXT    NOT NULL,
  created_at INTEGER NOT NULL,
  kind       INTEGER NOT NULL,
  tags       TEXT    NOT NULL,
  content    TEXT    NOT NULL,
  sig        TEXT    NOT NULL,
  d_tag      TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_event_created_at ON event (created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_event_kind       ON event (kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_event_pubkey     ON event (pubkey, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_event_replace    ON event (pubkey, kind, d_tag);

CREATE TABLE IF NOT EXISTS tag_index (
  event_id TEXT NOT NULL,
  name     TEXT NOT NULL,
  value    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tag_lookup ON tag_index (name, value, event_id);
CREATE INDEX IF NOT EXISTS idx_tag_owner  ON tag_index (event_id);
`

func (b *SQLiteBackend) migrate() error {
	if _, err := b.writer.ExecContext(context.Background(), schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
