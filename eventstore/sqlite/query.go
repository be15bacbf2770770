package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/OpenAgentsInc/pylon"
)

func (b *SQLiteBackend) QueryEvents(ctx context.Context, filter nostr.Filter) (iter.Seq[nostr.Event], error) {
	if filter.LimitZero {
		return func(yield func(nostr.Event) bool) {}, nil
	}

	query, params := b.buildQuery(filter)

	conn, err := b.checkout(ctx, b.reader)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	// drain while we hold the reader connection so slow consumers
	// can't pin a pool slot
	events := make([]nostr.Event, 0, 32)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}

	return func(yield func(nostr.Event) bool) {
		for _, evt := range events {
			if !yield(evt) {
				return
			}
		}
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (nostr.Event, error) {
	var evt nostr.Event
	var id, pubkey, tagsj, sig string
	var createdAt int64
	var kind int

	if err := row.Scan(&id, &pubkey, &createdAt, &kind, &tagsj, &evt.Content, &sig); err != nil {
		return evt, fmt.Errorf("failed to scan event row: %w", err)
	}

	var err error
	if evt.ID, err = nostr.IDFromHex(id); err != nil {
		return evt, fmt.Errorf("corrupt id in row: %w", err)
	}
	if evt.PubKey, err = nostr.PubKeyFromHex(pubkey); err != nil {
		return evt, fmt.Errorf("corrupt pubkey in row: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsj), &evt.Tags); err != nil {
		return evt, fmt.Errorf("corrupt tags in row: %w", err)
	}
	if err := decodeSigHex(sig, &evt.Sig); err != nil {
		return evt, err
	}
	evt.CreatedAt = nostr.Timestamp(createdAt)
	evt.Kind = nostr.Kind(kind)

	return evt, nil
}

const selectEvent = `SELECT id, pubkey, created_at, kind, tags, content, sig FROM event`

func (b *SQLiteBackend) buildQuery(filter nostr.Filter) (string, []any) {
	conds, params := whereClauses(filter)

	limit := filter.Limit
	if limit <= 0 || limit > b.MaxLimit {
		limit = b.MaxLimit
	}
	params = append(params, limit)

	query := selectEvent
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ?"

	return query, params
}

func whereClauses(filter nostr.Filter) ([]string, []any) {
	conds := make([]string, 0, 6)
	params := make([]any, 0, 8)

	if len(filter.IDs) > 0 {
		ors := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if len(id) == 64 {
				ors = append(ors, "id = ?")
				params = append(params, id)
			} else {
				ors = append(ors, "id LIKE ?")
				params = append(params, id+"%")
			}
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(filter.Authors) > 0 {
		ors := make([]string, 0, len(filter.Authors))
		for _, pk := range filter.Authors {
			if len(pk) == 64 {
				ors = append(ors, "pubkey = ?")
				params = append(params, pk)
			} else {
				ors = append(ors, "pubkey LIKE ?")
				params = append(params, pk+"%")
			}
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, kind := range filter.Kinds {
			placeholders[i] = "?"
			params = append(params, int(kind))
		}
		conds = append(conds, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}

	for key, values := range filter.Tags {
		if len(key) != 1 {
			// only single-letter tags are indexed, nothing can match
			conds = append(conds, "0")
			continue
		}
		placeholders := make([]string, len(values))
		params = append(params, key)
		for i, value := range values {
			placeholders[i] = "?"
			params = append(params, value)
		}
		conds = append(conds,
			"EXISTS (SELECT 1 FROM tag_index WHERE tag_index.event_id = event.id"+
				" AND tag_index.name = ? AND tag_index.value IN ("+strings.Join(placeholders, ", ")+"))")
	}

	if filter.Since != 0 {
		conds = append(conds, "created_at >= ?")
		params = append(params, int64(filter.Since))
	}
	if filter.Until != 0 {
		conds = append(conds, "created_at <= ?")
		params = append(params, int64(filter.Until))
	}

	return conds, params
}
