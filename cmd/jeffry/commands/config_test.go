package commands

import (
	"testing"

	"github.com/jeffryhq/jeffry/internal/config"
)

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"123456789:ABCdef", "1234********Cdef"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecretsLeavesConfigUntouched(t *testing.T) {
	cfg := config.Default()
	cfg.Provider["gemini"] = config.ProviderConfig{APIKey: "AIzaSyExampleKey", Model: "gemini-2.0-flash"}
	cfg.Channel.Telegram.Token = "123456789:ABCdef"

	masked := maskSecrets(cfg)
	if masked.Provider["gemini"].APIKey == "AIzaSyExampleKey" || masked.Channel.Telegram.Token == "123456789:ABCdef" {
		t.Errorf("secrets not masked: %+v", masked)
	}
	if masked.Provider["gemini"].Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q, want it kept", masked.Provider["gemini"].Model)
	}
	if cfg.Provider["gemini"].APIKey != "AIzaSyExampleKey" || cfg.Channel.Telegram.Token != "123456789:ABCdef" {
		t.Error("maskSecrets modified the original config")
	}
}
