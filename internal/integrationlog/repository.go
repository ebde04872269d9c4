package integrationlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Appender is the write side. There is deliberately no update or delete.
type Appender interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
}

// ListFilter narrows ListRecent.
type ListFilter struct {
	Platform  string
	EventType EventType
	Limit     int
}

// Repository stores log rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new integration log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertEntryQuery = `
	INSERT INTO integration_logs (platform, event_type, status, payload, error_message, lead_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at`

// Append inserts a row and returns it with id and timestamp filled in.
func (r *Repository) Append(ctx context.Context, entry Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, insertEntryQuery, insertArgs(entry)...).Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}

// insertArgs binds the payload as bytea so any byte sequence is accepted.
func insertArgs(entry Entry) []interface{} {
	payload := entry.Payload
	if payload == nil {
		payload = []byte{}
	}
	var errMsg *string
	if entry.ErrorMessage != nil {
		msg := storable(*entry.ErrorMessage)
		errMsg = &msg
	}
	return []interface{}{
		storable(entry.Platform), string(entry.EventType), string(entry.Status), payload, errMsg, entry.LeadID,
	}
}

// ListRecent returns rows newest first.
func (r *Repository) ListRecent(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			eventType string
			status    string
			leadID    *uuid.UUID
		)
		if err := rows.Scan(&e.ID, &e.Platform, &eventType, &status, &e.Payload, &e.ErrorMessage, &leadID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = EventType(eventType)
		e.Status = Status(status)
		e.LeadID = leadID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func buildListQuery(filter ListFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	addEquals := func(column string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addEquals("platform", filter.Platform)
	addEquals("event_type", string(filter.EventType))

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)

	var sb strings.Builder
	sb.WriteString(`SELECT id, platform, event_type, status, payload, error_message, lead_id, created_at FROM integration_logs`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)))
	return sb.String(), args
}
