package upstream

import (
	"strings"
	"time"

	"github.com/sereno-app/sereno/internal/reliability"
)

// Plan fixes the retry/fallback budget for one logical generation call.
// Models is tried in order; each model gets MaxAttempts tries with exponential
// backoff between retryable failures.
type Plan struct {
	Models      []string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// State identifies the attempt that just finished: Model indexes Plan.Models,
// Attempt is zero-based within that model.
type State struct {
	Model   int
	Attempt int
}

type ActionKind int

const (
	// ActionRetry sleeps Delay and retries the same model.
	ActionRetry ActionKind = iota
	// ActionFallback advances to the next model with a fresh attempt budget.
	ActionFallback
	// ActionGiveUp reports total failure.
	ActionGiveUp
)

type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// Next decides what follows a failed attempt. A non-retryable failure burns
// the rest of the model's budget: the same payload will keep failing, so move
// on immediately.
func (p Plan) Next(s State, retryable bool) Action {
	if retryable && s.Attempt+1 < p.MaxAttempts {
		return Action{Kind: ActionRetry, Delay: reliability.ExponentialBackoff(s.Attempt, p.BackoffBase, p.BackoffCap)}
	}
	if s.Model+1 < len(p.Models) {
		return Action{Kind: ActionFallback}
	}
	return Action{Kind: ActionGiveUp}
}

// DedupModels drops blank entries and repeats while preserving order, so no
// model is ever tried twice in one call.
func DedupModels(models []string) []string {
	seen := make(map[string]struct{}, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
