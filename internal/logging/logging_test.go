// ABOUTME: Tests for logger construction
// ABOUTME: Verifies level parsing and the verbose/quiet mapping
package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"nonsense", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(&bytes.Buffer{}, tt.level)
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestForCLI(t *testing.T) {
	if got := ForCLI(&bytes.Buffer{}, true, false).GetLevel(); got != log.DebugLevel {
		t.Errorf("verbose level = %v, want debug", got)
	}
	if got := ForCLI(&bytes.Buffer{}, false, true).GetLevel(); got != log.ErrorLevel {
		t.Errorf("quiet level = %v, want error", got)
	}
	if got := ForCLI(&bytes.Buffer{}, false, false).GetLevel(); got != log.WarnLevel {
		t.Errorf("default level = %v, want warn", got)
	}
}

func TestNew_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Info("saved knowledge base", "vectors", 3)

	out := buf.String()
	if !strings.Contains(out, "saved knowledge base") || !strings.Contains(out, "vectors=3") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Error("OrDiscard(nil) should return a usable logger")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
}
