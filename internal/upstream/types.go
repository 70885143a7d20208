package upstream

import (
	"context"
	"fmt"
	"time"
)

// Role values accepted by the upstream provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in the upstream payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized generation request. System is prepended as the
// first message; Messages must end with exactly one non-empty user turn.
type Request struct {
	System   string
	Messages []Message
}

// Result is the outcome of a successful generation.
type Result struct {
	Text         string
	Model        string
	FinishReason string
	Status       int
	Elapsed      time.Duration
}

// Generator produces a reply for a normalized request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// TotalFailureError reports that every model's retry budget was exhausted.
// It carries the last observed failure for diagnostics only; callers must not
// surface it to end users.
type TotalFailureError struct {
	Attempts   int
	LastModel  string
	LastStatus int
	LastErr    string
}

func (e *TotalFailureError) Error() string {
	if e.LastStatus > 0 {
		return fmt.Sprintf("upstream exhausted after %d attempts (last model %s, status %d): %s",
			e.Attempts, e.LastModel, e.LastStatus, e.LastErr)
	}
	return fmt.Sprintf("upstream exhausted after %d attempts (last model %s): %s",
		e.Attempts, e.LastModel, e.LastErr)
}
