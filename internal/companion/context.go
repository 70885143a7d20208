package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/store"
)

// personaInstruction fixes the companion's behavioral rules: tone, brevity,
// formatting, and the safety disclaimer. It leads every system instruction.
const personaInstruction = `Você é o Sereno, um companheiro de bem-estar emocional dentro de um aplicativo de saúde mental.

Regras de comportamento:
- Responda sempre em tom acolhedor, caloroso e sem julgamentos.
- Seja breve: no máximo três parágrafos curtos, sem listas longas.
- Use texto simples, sem markdown, títulos ou emojis em excesso.
- Nunca dê diagnósticos nem prescreva medicamentos. Em caso de crise, oriente a pessoa a procurar ajuda profissional ou o CVV (188).
- Use o contexto abaixo sobre a pessoa quando for útil, sem citá-lo literalmente.`

const noRecentActivity = "(sem atividade recente registrada)"

const maxEventLineLen = 160

// AssembledContext is what the orchestrator needs from the per-user reads:
// the full system instruction plus the current rolling memory, which the
// memory writer appends to after the reply is produced.
type AssembledContext struct {
	Instruction string
	Memory      string
}

// Assembler folds profile fields and recent behavioral events into a bounded
// system instruction.
type Assembler struct {
	store      store.Store
	eventLimit int
	logger     *zap.Logger
}

func NewAssembler(st store.Store, eventLimit int, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventLimit <= 0 {
		eventLimit = 12
	}
	return &Assembler{store: st, eventLimit: eventLimit, logger: logger}
}

// Assemble reads the profile (fatal on failure) and recent events
// (best-effort) and renders the system instruction. A user without a stored
// profile gets the persona rules with empty personal context.
func (a *Assembler) Assemble(ctx context.Context, userID string) (AssembledContext, error) {
	profile, err := a.store.Profile(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrProfileNotFound) {
		return AssembledContext{}, fmt.Errorf("profile read: %w", err)
	}

	events, err := a.store.RecentEvents(ctx, userID, a.eventLimit)
	if err != nil {
		// Events are soft signal only; degrade instead of failing the request.
		a.logger.Warn("behavioral events read failed", zap.String("user_id", userID), zap.Error(err))
		events = nil
	}

	var sb strings.Builder
	sb.WriteString(personaInstruction)

	if qc := strings.TrimSpace(profile.QuizContext); qc != "" {
		sb.WriteString("\n\nSobre esta pessoa:\n")
		sb.WriteString(qc)
	}
	if mem := strings.TrimSpace(profile.Memory); mem != "" {
		sb.WriteString("\n\nMemória de conversas anteriores:\n")
		sb.WriteString(mem)
	}

	sb.WriteString("\n\nAtividade recente no aplicativo:\n")
	if len(events) == 0 {
		sb.WriteString(noRecentActivity)
	} else {
		for i, e := range events {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(eventLine(e))
		}
	}

	return AssembledContext{Instruction: sb.String(), Memory: profile.Memory}, nil
}

// eventLine renders one event as a compact "type: payload" entry.
func eventLine(e store.Event) string {
	line := "- " + e.Type
	if len(e.Payload) > 0 {
		compact, err := compactJSON(e.Payload)
		if err == nil && compact != "" && compact != "null" {
			line += ": " + compact
		}
	}
	if runes := []rune(line); len(runes) > maxEventLineLen {
		line = string(runes[:maxEventLineLen])
	}
	return line
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
