package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v, want single unchanged chunk", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 60) + "\n" + strings.Repeat("y", 60)
	got := splitText(s, 100)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	if !strings.HasSuffix(got[0], "x") || !strings.HasPrefix(got[1], "y") {
		t.Fatalf("split did not honor the newline boundary: %q | %q", got[0], got[1])
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("z", 950)
	for _, chunk := range splitText(s, 300) {
		if len([]rune(chunk)) > 300 {
			t.Fatalf("chunk length %d exceeds limit", len([]rune(chunk)))
		}
	}
}
