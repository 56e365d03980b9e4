package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeffryhq/jeffry/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warning ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTextLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(config.LoggingConfig{Level: "warn"}, Options{Stderr: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()

	log.Info("run_start")
	log.Warn("tool_failed", "tool", "web_search")
	out := buf.String()
	if strings.Contains(out, "run_start") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=tool_failed") || !strings.Contains(out, "tool=web_search") {
		t.Errorf("output = %q", out)
	}
}

func TestNewJSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "jeffry.log")
	var buf bytes.Buffer
	log, closer, err := New(config.LoggingConfig{Format: "json", File: path}, Options{Stderr: &buf, Verbose: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("model_call_done", "iteration", 2)
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("file and console differ:\n%s\n%s", data, buf.Bytes())
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "model_call_done" || rec["level"] != "DEBUG" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Format: "xml"}, Options{}); err == nil {
		t.Error("New accepted format xml")
	}
}
