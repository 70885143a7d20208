package upstream

import (
	"context"
	"strings"
	"time"
)

// MockGenerator echoes a canned reply without any network call. Used in debug
// deployments without an API key and in tests.
type MockGenerator struct {
	Reply string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(_ context.Context, req Request) (Result, error) {
	if _, err := normalizeMessages(req); err != nil {
		return Result{}, err
	}
	reply := m.Reply
	if strings.TrimSpace(reply) == "" {
		last := req.Messages[len(req.Messages)-1].Content
		reply = "(mock) Entendi: " + last
	}
	return Result{
		Text:    reply,
		Model:   "mock",
		Status:  200,
		Elapsed: time.Millisecond,
	}, nil
}
