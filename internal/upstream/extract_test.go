package upstream

import "testing"

func TestExtractTextFlattened(t *testing.T) {
	text, reason := ExtractText([]byte(`{"text": "olá, tudo bem?"}`))
	if text != "olá, tudo bem?" {
		t.Fatalf("text = %q, want flattened field", text)
	}
	if reason != "" {
		t.Fatalf("reason = %q, want empty", reason)
	}
}

func TestExtractTextContentParts(t *testing.T) {
	body := `{"candidates": [{"content": {"parts": [{"text": "Respire "}, {"text": "fundo."}]}, "finishReason": "STOP"}]}`
	text, reason := ExtractText([]byte(body))
	if text != "Respire fundo." {
		t.Fatalf("text = %q, want concatenated parts", text)
	}
	if reason != "STOP" {
		t.Fatalf("reason = %q, want STOP", reason)
	}
}

func TestExtractTextChatCompletions(t *testing.T) {
	body := `{"choices": [{"message": {"content": "Estou aqui."}, "finish_reason": "stop"}]}`
	text, reason := ExtractText([]byte(body))
	if text != "Estou aqui." {
		t.Fatalf("text = %q, want choices content", text)
	}
	if reason != "stop" {
		t.Fatalf("reason = %q, want stop", reason)
	}
}

func TestExtractTextSafetyBlock(t *testing.T) {
	body := `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`
	text, reason := ExtractText([]byte(body))
	if text != "" {
		t.Fatalf("text = %q, want empty on safety block", text)
	}
	if reason != "SAFETY" {
		t.Fatalf("reason = %q, want SAFETY", reason)
	}
}

func TestExtractTextBlockReasonOnly(t *testing.T) {
	body := `{"promptFeedback": {"blockReason": "BLOCKLIST"}}`
	text, reason := ExtractText([]byte(body))
	if text != "" || reason != "BLOCKLIST" {
		t.Fatalf("got (%q, %q), want empty text with block reason", text, reason)
	}
}

func TestExtractTextGarbage(t *testing.T) {
	text, reason := ExtractText([]byte("not json"))
	if text != "" || reason != "" {
		t.Fatalf("got (%q, %q), want empty for unparseable body", text, reason)
	}
}
