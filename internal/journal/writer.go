// Package journal keeps an append-only log of store mutations: the
// explicit command log that replaces save-on-render side effects as the
// record of what changed and when.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nextstep/internal/store"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
	Log *zap.Logger
}

type Payload map[string]any

// Append records one mutation.
func (w Writer) Append(ctx context.Context, op, entityKind, entityID string, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO changelog(ts,op,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, op, entityKind, nullable(entityID), string(data))
	return err
}

// Subscriber adapts the writer to the store's change notifications.
// Journal failures are logged, never surfaced to the mutating caller.
func (w Writer) Subscriber(ctx context.Context) store.Subscriber {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(c store.Change, _ store.State) {
		if err := w.Append(ctx, c.Op, c.EntityKind, c.EntityID, Payload(c.Payload)); err != nil {
			log.Warn("journal append failed", zap.String("op", c.Op), zap.Error(err))
		}
	}
}

type Entry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Op         string `json:"op"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	Payload    string `json:"payload"`
}

// Tail returns the most recent entries, newest first.
func (w Writer) Tail(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := w.DB.QueryContext(ctx, `SELECT id,ts,op,entity_kind,entity_id,payload_json FROM changelog ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Op, &e.EntityKind, &entityID, &e.Payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
