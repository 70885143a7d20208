package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sereno-app/sereno/internal/store"
	"github.com/sereno-app/sereno/internal/upstream"
)

type fakeGenerator struct {
	result  upstream.Result
	err     error
	calls   int
	lastReq upstream.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req upstream.Request) (upstream.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return upstream.Result{}, f.err
	}
	return f.result, nil
}

type memoryFailStore struct {
	store.Store
	updateErr error
}

func (m *memoryFailStore) UpdateMemory(ctx context.Context, userID, memory string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	return m.Store.UpdateMemory(ctx, userID, memory)
}

func newTestOrchestrator(gen upstream.Generator, st store.Store) *Orchestrator {
	return NewOrchestrator(gen, NewAssembler(st, 12, nil), st, Limits{
		HistoryTurns: 6,
		TurnChars:    600,
		MemoryBytes:  4000,
	}, "test", nil, nil)
}

func TestRespondHappyPath(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "Sinto muito que você esteja assim.", Model: "primary"}}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(gen, st)

	reply, err := o.Respond(context.Background(), ChatRequest{Message: "Estou ansioso", UserID: "u1"})
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		t.Fatalf("reply text is empty, want non-empty")
	}
	if reply.Model != "primary" {
		t.Fatalf("Model = %q, want primary", reply.Model)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}

	o.Drain()
	p, err := st.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile error = %v", err)
	}
	want := "User: Estou ansioso\nSereno: Sinto muito que você esteja assim."
	if p.Memory != want {
		t.Fatalf("Memory = %q, want %q", p.Memory, want)
	}
}

func TestRespondRejectsEmptyMessage(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := o.Respond(context.Background(), ChatRequest{Message: msg, UserID: "u1"})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Respond(%q) error = %v, want ValidationError", msg, err)
		}
	}
	if gen.calls != 0 {
		t.Fatalf("generator calls = %d, want 0 for invalid input", gen.calls)
	}
}

func TestRespondRejectsMissingUserID(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	_, err := o.Respond(context.Background(), ChatRequest{Message: "oi"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Respond error = %v, want ValidationError", err)
	}
	if verr.Field != "userId" {
		t.Fatalf("Field = %q, want userId", verr.Field)
	}
	if gen.calls != 0 {
		t.Fatalf("generator calls = %d, want 0", gen.calls)
	}
}

func TestRespondShapesHistoryAndEndsWithUserTurn(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "ok", Model: "m"}}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	var history []ChatTurn
	for i := 0; i < 15; i++ {
		sender := "user"
		if i%2 == 1 {
			sender = "assistant"
		}
		history = append(history, ChatTurn{Sender: sender, Text: fmt.Sprintf("turno %d", i)})
	}

	if _, err := o.Respond(context.Background(), ChatRequest{Message: "agora", History: history, UserID: "u1"}); err != nil {
		t.Fatalf("Respond error = %v", err)
	}

	msgs := gen.lastReq.Messages
	if len(msgs) != 7 {
		t.Fatalf("len(messages) = %d, want 6 shaped turns + current", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != upstream.RoleUser || last.Content != "agora" {
		t.Fatalf("last message = %+v, want current user turn", last)
	}
	if msgs[0].Content != "turno 9" {
		t.Fatalf("first shaped turn = %q, want most recent window start", msgs[0].Content)
	}
	if gen.lastReq.System == "" {
		t.Fatalf("system instruction is empty")
	}
}

func TestRespondFeedsPriorReplyBackAsAssistant(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "primeira resposta", Model: "m"}}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	first, err := o.Respond(context.Background(), ChatRequest{Message: "oi", UserID: "u1"})
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}

	history := []ChatTurn{
		{Sender: "user", Text: "oi"},
		{Sender: "assistant", Text: first.Text},
	}
	if _, err := o.Respond(context.Background(), ChatRequest{Message: "continua", History: history, UserID: "u1"}); err != nil {
		t.Fatalf("second Respond error = %v", err)
	}

	msgs := gen.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(msgs))
	}
	if msgs[1].Role != upstream.RoleAssistant || msgs[1].Content != "primeira resposta" {
		t.Fatalf("prior reply mapped as %+v, want assistant role", msgs[1])
	}
}

func TestRespondSubstitutesFallbackOnEmptyReply(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "", Model: "m", FinishReason: "SAFETY"}}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	reply, err := o.Respond(context.Background(), ChatRequest{Message: "oi", UserID: "u1"})
	if err != nil {
		t.Fatalf("Respond error = %v, want degrade-path success", err)
	}
	if reply.Text != fallbackReply {
		t.Fatalf("Text = %q, want canned fallback", reply.Text)
	}
}

func TestRespondMapsTotalFailureToUnavailable(t *testing.T) {
	gen := &fakeGenerator{err: &upstream.TotalFailureError{Attempts: 6, LastModel: "b", LastStatus: 500, LastErr: "boom"}}
	o := newTestOrchestrator(gen, store.NewInMemoryStore())

	_, err := o.Respond(context.Background(), ChatRequest{Message: "oi", UserID: "u1"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Respond error = %v, want UnavailableError", err)
	}
}

func TestRespondSurvivesMemoryWriteFailure(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "resposta", Model: "m"}}
	st := &memoryFailStore{Store: store.NewInMemoryStore(), updateErr: errors.New("db down")}
	o := newTestOrchestrator(gen, st)

	reply, err := o.Respond(context.Background(), ChatRequest{Message: "oi", UserID: "u1"})
	if err != nil {
		t.Fatalf("Respond error = %v, want success despite write failure", err)
	}
	if reply.Text != "resposta" {
		t.Fatalf("Text = %q, want generated reply", reply.Text)
	}
	o.Drain()
}

func TestRespondRedactsPIIBeforePersisting(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Text: "anotado", Model: "m"}}
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(gen, st)

	if _, err := o.Respond(context.Background(), ChatRequest{
		Message: "meu email é ana@example.com",
		UserID:  "u1",
	}); err != nil {
		t.Fatalf("Respond error = %v", err)
	}
	o.Drain()

	p, err := st.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile error = %v", err)
	}
	if strings.Contains(p.Memory, "ana@example.com") {
		t.Fatalf("Memory contains raw email: %q", p.Memory)
	}
	if !strings.Contains(p.Memory, "[REDACTED_EMAIL]") {
		t.Fatalf("Memory missing redaction marker: %q", p.Memory)
	}
}
