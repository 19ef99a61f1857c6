package telegram

import (
	"strings"
	"testing"

	logx "chimebot/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 60) + "\n" + strings.Repeat("y", 60)
	got := splitText(text, 100)
	if len(got) != 2 {
		t.Fatalf("splitText = %d chunks, want 2", len(got))
	}
	if got[0] != strings.Repeat("x", 60) {
		t.Fatalf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("y", 60) {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardSplitWithoutNewlines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("z", 250)
	got := splitText(text, 100)
	if len(got) != 3 {
		t.Fatalf("splitText = %d chunks, want 3", len(got))
	}
	for i, c := range got {
		if len(c) > 100 {
			t.Fatalf("chunk %d has %d runes", i, len(c))
		}
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Fatal("hard split lost content")
	}
}

func TestSplitTextRuneSafe(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("я", 150)
	got := splitText(text, 100)
	if len(got) != 2 {
		t.Fatalf("splitText = %d chunks, want 2", len(got))
	}
	for i, c := range got {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %d split inside a rune", i)
		}
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
