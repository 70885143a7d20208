package upstream

import (
	"encoding/json"
	"strings"
)

// Known response shapes, tried in fixed priority order:
//  1. flattened output text: {"text": "..."}
//  2. content-parts: {"candidates": [{"content": {"parts": [{"text": ...}]}, "finishReason": ...}]}
//  3. chat-completions: {"choices": [{"message": {"content": ...}, "finish_reason": ...}]}
//
// The finish/block reason is returned alongside so an empty extraction (e.g. a
// safety block) can be logged with its cause.
type providerResponse struct {
	Text string `json:"text"`

	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`

	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ExtractText pulls generated text out of a provider response body, returning
// the first non-empty match plus the finish/block reason for diagnostics.
func ExtractText(body []byte) (text, finishReason string) {
	var resp providerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", ""
	}

	if t := strings.TrimSpace(resp.Text); t != "" {
		return t, ""
	}

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		reason := cand.FinishReason
		if reason == "" {
			reason = resp.PromptFeedback.BlockReason
		}
		if t := strings.TrimSpace(sb.String()); t != "" {
			return t, reason
		}
		if reason != "" {
			return "", reason
		}
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		return strings.TrimSpace(choice.Message.Content), choice.FinishReason
	}

	return "", resp.PromptFeedback.BlockReason
}
