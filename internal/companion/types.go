package companion

import "fmt"

// ChatTurn is one prior exchange entry supplied by the client. Sender is
// "user" for the caller's own turns; anything else is treated as the
// assistant's side.
type ChatTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatRequest is an inbound chat message with optional prior history.
type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
	UserID  string     `json:"userId"`
}

// ChatReply is the generated answer. Text is always non-empty on success.
type ChatReply struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ValidationError reports bad or missing input; no upstream call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError reports that the upstream exhausted every model. Detail is
// for logs and debug responses only, never for end users.
type UnavailableError struct {
	Detail string
}

func (e *UnavailableError) Error() string {
	return "companion service unavailable: " + e.Detail
}
