package companion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/observability"
	"github.com/sereno-app/sereno/internal/policy"
	"github.com/sereno-app/sereno/internal/store"
	"github.com/sereno-app/sereno/internal/upstream"
)

// fallbackReply is the designed degrade path when the upstream succeeds but
// yields no usable text (e.g. a safety block). Never an error.
const fallbackReply = "Desculpa, não consegui encontrar as palavras agora. Pode me contar de outro jeito como você está se sentindo?"

// unavailableReply is the user-facing message for total upstream failure.
const unavailableReply = "Estou com dificuldade para responder neste momento. Respira fundo e tenta de novo em instantes, tá bem?"

const memorySaveTimeout = 5 * time.Second

// Limits bounds the per-request payload shaping.
type Limits struct {
	HistoryTurns int
	TurnChars    int
	MemoryBytes  int
}

// Orchestrator validates chat requests, assembles context, calls the upstream
// generator, and persists rolling memory best-effort.
type Orchestrator struct {
	generator upstream.Generator
	assembler *Assembler
	store     store.Store
	limits    Limits
	provider  string
	metrics   *observability.Metrics
	logger    *zap.Logger

	writes sync.WaitGroup
}

func NewOrchestrator(
	generator upstream.Generator,
	assembler *Assembler,
	st store.Store,
	limits Limits,
	provider string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.HistoryTurns <= 0 {
		limits.HistoryTurns = 12
	}
	if limits.TurnChars <= 0 {
		limits.TurnChars = 600
	}
	if limits.MemoryBytes <= 0 {
		limits.MemoryBytes = 4000
	}
	return &Orchestrator{
		generator: generator,
		assembler: assembler,
		store:     st,
		limits:    limits,
		provider:  provider,
		metrics:   metrics,
		logger:    logger,
	}
}

// UnavailableMessage is the friendly text the HTTP layer returns on 503.
func UnavailableMessage() string { return unavailableReply }

// Respond handles one chat turn end to end. The returned reply text is always
// non-empty on success.
func (o *Orchestrator) Respond(ctx context.Context, req ChatRequest) (ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ChatReply{}, &ValidationError{Field: "message", Reason: "must be a non-empty string"}
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return ChatReply{}, &ValidationError{Field: "userId", Reason: "is required"}
	}

	assembled, err := o.assembler.Assemble(ctx, userID)
	if err != nil {
		return ChatReply{}, err
	}

	messages := ShapeHistory(req.History, o.limits.HistoryTurns, o.limits.TurnChars)
	messages = append(messages, upstream.Message{Role: upstream.RoleUser, Content: message})

	result, err := o.generator.Generate(ctx, upstream.Request{
		System:   assembled.Instruction,
		Messages: messages,
	})
	if err != nil {
		var total *upstream.TotalFailureError
		if errors.As(err, &total) {
			o.logger.Error("upstream exhausted", zap.String("user_id", userID), zap.Error(err))
			return ChatReply{}, &UnavailableError{Detail: total.Error()}
		}
		return ChatReply{}, err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		o.logger.Warn("empty upstream reply, using fallback",
			zap.String("user_id", userID),
			zap.String("model", result.Model),
			zap.String("finish_reason", result.FinishReason))
		text = fallbackReply
	}

	o.persistMemoryAsync(userID, assembled.Memory, message, text)

	return ChatReply{Text: text, Provider: o.provider, Model: result.Model}, nil
}

// persistMemoryAsync appends the exchange to the rolling memory in a detached
// goroutine. The response has already been computed; a failure here is logged
// and swallowed, never propagated.
func (o *Orchestrator) persistMemoryAsync(userID, currentMemory, userMessage, reply string) {
	o.writes.Add(1)
	go func() {
		defer o.writes.Done()

		redactedMsg, _ := policy.RedactPII(userMessage)
		redactedReply, _ := policy.RedactPII(reply)
		updated := AppendExchange(currentMemory, redactedMsg, redactedReply, o.limits.MemoryBytes)

		ctx, cancel := context.WithTimeout(context.Background(), memorySaveTimeout)
		defer cancel()
		if err := o.store.UpdateMemory(ctx, userID, updated); err != nil {
			o.logger.Warn("rolling memory write failed", zap.String("user_id", userID), zap.Error(err))
			if o.metrics != nil {
				o.metrics.MemoryWriteFailures.Inc()
			}
		}
	}()
}

// Drain blocks until in-flight memory writes finish. Called on shutdown and
// by tests that assert on persisted memory.
func (o *Orchestrator) Drain() {
	o.writes.Wait()
}
