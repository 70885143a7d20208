package companion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sereno-app/sereno/internal/upstream"
)

func TestShapeHistoryKeepsMostRecentInOrder(t *testing.T) {
	var history []ChatTurn
	for i := 0; i < 20; i++ {
		history = append(history, ChatTurn{Sender: "user", Text: fmt.Sprintf("turn %d", i)})
	}

	got := ShapeHistory(history, 6, 600)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	for i, msg := range got {
		want := fmt.Sprintf("turn %d", 14+i)
		if msg.Content != want {
			t.Fatalf("got[%d] = %q, want %q (most recent, original order)", i, msg.Content, want)
		}
	}
}

func TestShapeHistoryMapsSenders(t *testing.T) {
	history := []ChatTurn{
		{Sender: "user", Text: "minha mensagem"},
		{Sender: "assistant", Text: "resposta do companheiro"},
		{Sender: "bot", Text: "outro remetente qualquer"},
	}

	got := ShapeHistory(history, 10, 600)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Role != upstream.RoleUser {
		t.Fatalf("got[0].Role = %q, want user", got[0].Role)
	}
	if got[1].Role != upstream.RoleAssistant || got[2].Role != upstream.RoleAssistant {
		t.Fatalf("non-user senders = [%q %q], want assistant role", got[1].Role, got[2].Role)
	}
}

func TestShapeHistoryTruncatesLongTurns(t *testing.T) {
	history := []ChatTurn{{Sender: "user", Text: strings.Repeat("a", 1000)}}
	got := ShapeHistory(history, 10, 100)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if len(got[0].Content) != 100 {
		t.Fatalf("content length = %d, want 100", len(got[0].Content))
	}
}

func TestShapeHistoryDropsBlankTurns(t *testing.T) {
	history := []ChatTurn{
		{Sender: "user", Text: "  "},
		{Sender: "assistant", Text: "presente"},
	}
	got := ShapeHistory(history, 10, 600)
	if len(got) != 1 || got[0].Content != "presente" {
		t.Fatalf("got = %+v, want only the non-blank turn", got)
	}
}
