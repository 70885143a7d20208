package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestInMemoryProfileRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.Profile(ctx, "u1"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Profile(missing) error = %v, want ErrProfileNotFound", err)
	}

	if err := s.UpsertProfile(ctx, Profile{UserID: "u1", QuizContext: "prefers short answers"}); err != nil {
		t.Fatalf("UpsertProfile error = %v", err)
	}
	p, err := s.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile error = %v", err)
	}
	if p.QuizContext != "prefers short answers" {
		t.Fatalf("QuizContext = %q, want stored value", p.QuizContext)
	}
	if p.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not stamped")
	}
}

func TestInMemoryUpdateMemoryCreatesProfile(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.UpdateMemory(ctx, "u2", "User: oi\nSereno: olá"); err != nil {
		t.Fatalf("UpdateMemory error = %v", err)
	}
	p, err := s.Profile(ctx, "u2")
	if err != nil {
		t.Fatalf("Profile error = %v", err)
	}
	if p.Memory != "User: oi\nSereno: olá" {
		t.Fatalf("Memory = %q, want written value", p.Memory)
	}
}

func TestInMemoryRecentEventsNewestFirstCapped(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, typ := range []string{"mood_logged", "lesson_completed", "task_done", "quiz_finished"} {
		payload, _ := json.Marshal(map[string]string{"v": typ})
		if err := s.SaveEvent(ctx, Event{UserID: "u1", Type: typ, Payload: payload}); err != nil {
			t.Fatalf("SaveEvent(%s) error = %v", typ, err)
		}
	}

	events, err := s.RecentEvents(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentEvents error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Type != "quiz_finished" || events[1].Type != "task_done" {
		t.Fatalf("events = [%s %s], want newest first", events[0].Type, events[1].Type)
	}
	if events[0].ID == "" {
		t.Fatalf("event ID not assigned")
	}
}

func TestInMemoryRecentEventsEmpty(t *testing.T) {
	s := NewInMemoryStore()
	events, err := s.RecentEvents(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("RecentEvents error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("len(events) = %d, want 0", len(events))
	}
}
