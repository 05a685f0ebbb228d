package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

// TestParseDefaults tests default values
func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.GeneratorTimeout != 45*time.Second {
		t.Errorf("Expected 45s generator timeout, got %v", cfg.GeneratorTimeout)
	}
	if cfg.DMProvider != "openai" || cfg.StorageBackend != "local" {
		t.Errorf("Expected openai and local defaults, got %s and %s", cfg.DMProvider, cfg.StorageBackend)
	}
	if cfg.GeneratorTries != 2 {
		t.Errorf("Expected 2 generator tries, got %d", cfg.GeneratorTries)
	}
	if cfg.ImageSize != "1536x1024" || cfg.ImageQuality != "medium" {
		t.Errorf("Unexpected image defaults %s %s", cfg.ImageSize, cfg.ImageQuality)
	}
}

// TestParseOverrides tests environment overrides
func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SCENE_WORKERS", "4")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("IMAGE_TIMEOUT", "30s")
	t.Setenv("GENERATOR_TRIES", "3")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cfg.Port != "9090" || cfg.SceneWorkers != 4 || cfg.RateLimitRPS != 2.5 || cfg.ImageTimeout != 30*time.Second {
		t.Errorf("Expected overrides to apply, got %+v", cfg)
	}
	if cfg.GeneratorTries != 3 {
		t.Errorf("Expected 3 generator tries, got %d", cfg.GeneratorTries)
	}
}

// TestParseErrors tests invalid and missing settings
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"SCENE_WORKERS": "many"}, "parse env:"},
		{"no secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"gemini key", map[string]string{"DM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"provider", map[string]string{"DM_PROVIDER": "claude"}, "DM_PROVIDER"},
		{"cos", map[string]string{"STORAGE_BACKEND": "cos"}, "COS_BUCKET"},
		{"workers", map[string]string{"SCENE_WORKERS": "0"}, "SCENE_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
