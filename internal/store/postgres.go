package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists profiles and behavioral events in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			quiz_context TEXT NOT NULL DEFAULT '',
			memory TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS behavioral_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_behavioral_events_user_created
			ON behavioral_events (user_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Profile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, quiz_context, memory, updated_at FROM profiles WHERE user_id=$1`,
		userID,
	).Scan(&p.UserID, &p.QuizContext, &p.Memory, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, quiz_context, memory, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET quiz_context=EXCLUDED.quiz_context, memory=EXCLUDED.memory, updated_at=EXCLUDED.updated_at`,
		p.UserID, p.QuizContext, p.Memory, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// UpdateMemory overwrites only the memory field. Concurrent writers for the
// same user are last-writer-wins; the chat path accepts that race.
func (s *PostgresStore) UpdateMemory(ctx context.Context, userID, memory string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, memory, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET memory=EXCLUDED.memory, updated_at=now()`,
		userID, memory,
	)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEvent(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO behavioral_events (id, user_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.Type, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 12
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, event_type, payload, created_at
		 FROM behavioral_events WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	items := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
