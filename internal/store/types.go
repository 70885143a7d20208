package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrProfileNotFound reports a lookup for a user id with no stored profile.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the per-user record the chat core reads, and whose memory field
// it overwrites. QuizContext is free text produced by the onboarding flow.
type Profile struct {
	UserID      string    `json:"user_id"`
	QuizContext string    `json:"quiz_context"`
	Memory      string    `json:"memory"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event is a logged user-app interaction used as soft personalization signal.
type Event struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists profiles and behavioral events.
type Store interface {
	Profile(ctx context.Context, userID string) (Profile, error)
	UpsertProfile(ctx context.Context, p Profile) error
	UpdateMemory(ctx context.Context, userID, memory string) error
	SaveEvent(ctx context.Context, e Event) error
	RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error)
	Close() error
}
