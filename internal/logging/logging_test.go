package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerLevel(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"WARN", false, true},
		{"error", false, false},
		{"nonsense", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		h := newHandler(&bytes.Buffer{}, tt.level, "text")
		if got := h.Enabled(context.Background(), slog.LevelDebug); got != tt.debugOn {
			t.Errorf("level %q: debug enabled = %v, want %v", tt.level, got, tt.debugOn)
		}
		if got := h.Enabled(context.Background(), slog.LevelWarn); got != tt.warnOn {
			t.Errorf("level %q: warn enabled = %v, want %v", tt.level, got, tt.warnOn)
		}
	}
}

func TestHandlerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "info", "json"))
	logger.Info("task completed", "id", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["msg"] != "task completed" {
		t.Errorf("msg = %v, want task completed", line["msg"])
	}
	if line["id"] != float64(7) {
		t.Errorf("id = %v, want 7", line["id"])
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "info", "text"))

	Component(logger, "ledger").Info("award")
	if !strings.Contains(buf.String(), "component=ledger") {
		t.Errorf("missing component attribute: %q", buf.String())
	}
}
