package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelInfo))
	l.Info("session_established", map[string]any{"client_id": "abc"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", buf.String(), err)
	}
	if decoded["message"] != "session_established" {
		t.Errorf("message = %v, want session_established", decoded["message"])
	}
	if decoded["client_id"] != "abc" {
		t.Errorf("client_id = %v, want abc", decoded["client_id"])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelError))
	l.Info("should_not_appear", nil)
	if buf.Len() != 0 {
		t.Errorf("Info below the configured level should produce no output, got %q", buf.String())
	}
	l.Error("should_appear", nil)
	if buf.Len() == 0 {
		t.Error("Error at or above the configured level should produce output")
	}
}

func TestLoggerSilentLevelSuppressesEverything(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelSilent))
	l.Error("should_not_appear", nil)
	if buf.Len() != 0 {
		t.Errorf("LevelSilent should suppress all output, got %q", buf.String())
	}
}

func TestLoggerNameAttachesField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithName("vcsms-server"))
	l.Info("started", nil)
	if !strings.Contains(buf.String(), "vcsms-server") {
		t.Errorf("output %q should contain the logger name", buf.String())
	}
}

func TestLoggerWithMergesFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(WithOutput(&buf))
	child := base.With(Fields{"client_id": "xyz"})
	child.Info("relayed", nil)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if decoded["client_id"] != "xyz" {
		t.Errorf("client_id = %v, want xyz", decoded["client_id"])
	}
}

func TestLoggerNamedDotsParentName(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(WithOutput(&buf), WithName("vcsms"))
	child := base.Named("router")
	child.Info("x", nil)
	if !strings.Contains(buf.String(), "vcsms.router") {
		t.Errorf("output %q should contain dotted logger name vcsms.router", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"silent", LevelSilent},
		{"off", LevelSilent},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetLevelChangesThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelError))
	l.Info("suppressed", nil)
	if buf.Len() != 0 {
		t.Fatal("expected no output before SetLevel")
	}
	l.SetLevel(LevelInfo)
	l.Info("visible", nil)
	if buf.Len() == 0 {
		t.Error("expected output after SetLevel(LevelInfo)")
	}
}

func TestGlobalLoggerSetGet(t *testing.T) {
	var buf bytes.Buffer
	custom := NewLogger(WithOutput(&buf))
	SetLogger(custom)
	defer SetLogger(NewLogger())

	if GetLogger() != custom {
		t.Error("GetLogger should return the logger set via SetLogger")
	}
}

func TestNullLoggerProducesNoOutput(t *testing.T) {
	l := NullLogger()
	l.Error("should_be_silent", map[string]any{"x": 1})
}
