package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
)

// PQPublisher publishes events via Postgres NOTIFY only; it stores nothing,
// so a listener that is not connected when an event is sent misses it. Adapted
// from the teacher's dashboard event listener — this is the write side of
// that pattern; external tooling (not this repo) is the listener.
type PQPublisher struct {
	db      *sql.DB
	channel string
}

// NewPQPublisher opens a connection pool against dsn. channel is the
// NOTIFY channel every Event is published on.
func NewPQPublisher(dsn, channel string) (*PQPublisher, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("events: open postgres publisher: %w", err)
	}
	return &PQPublisher{db: db, channel: channel}, nil
}

// Publish sends ev as a NOTIFY payload: `{"type":..., "ts":..., "fields":...}`.
func (p *PQPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(struct {
		Type   Type           `json:"type"`
		Ts     string         `json:"ts"`
		Fields map[string]any `json:"fields,omitempty"`
	}{Type: ev.Type, Ts: ev.Ts.Format("2006-01-02T15:04:05.000Z07:00"), Fields: ev.Fields})
	if err != nil {
		return fmt.Errorf("events: marshal notify payload: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload))
	if err != nil {
		return fmt.Errorf("events: pg_notify: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *PQPublisher) Close() error { return p.db.Close() }
