package internal

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/askwiki/internal/docparse"
	pkgconfig "github.com/starford/askwiki/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !cfg.Catalog.Enabled() {
		t.Error("catalog should be enabled by default")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestKnowledgeBaseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*KnowledgeBaseConfig)
	}{
		{"missing source", func(c *KnowledgeBaseConfig) { c.Source = "" }},
		{"heading level too deep", func(c *KnowledgeBaseConfig) { c.HeadingLevel = 7 }},
		{"threshold above one", func(c *KnowledgeBaseConfig) { c.Threshold = 1.5 }},
		{"negative threshold", func(c *KnowledgeBaseConfig) { c.Threshold = -0.1 }},
		{"NaN threshold", func(c *KnowledgeBaseConfig) { c.Threshold = math.NaN() }},
		{"zero token length", func(c *KnowledgeBaseConfig) { c.MinTokenLength = 0 }},
		{"unknown format", func(c *KnowledgeBaseConfig) { c.Format = "rtf" }},
		{"negative debounce", func(c *KnowledgeBaseConfig) { c.Debounce = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg.KnowledgeBase)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestKnowledgeBaseConfig_ResolveFormat(t *testing.T) {
	tests := []struct {
		source, format string
		want           docparse.Format
	}{
		{"wiki.html", "", docparse.FormatHTML},
		{"wiki.md", "", docparse.FormatMarkdown},
		{"manual.docx", "", docparse.FormatDOCX},
		{"manual.pdf", "", docparse.FormatPDF},
		{"export.txt", "", docparse.FormatHTML},
		{"export.txt", "md", docparse.FormatMarkdown},
	}
	for _, tt := range tests {
		c := KnowledgeBaseConfig{Source: tt.source, Format: tt.format}
		got, err := c.ResolveFormat()
		if err != nil {
			t.Fatalf("%s/%s: %v", tt.source, tt.format, err)
		}
		if got != tt.want {
			t.Errorf("%s/%s = %q, want %q", tt.source, tt.format, got, tt.want)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("ASKWIKI_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
knowledge_base:
  source: ./wiki.md
  heading_level: 3
  threshold: 0.35
  extra_stopwords: [please, hello]
  debounce: 500ms
auth:
  mode: token
  token: ${ASKWIKI_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.KnowledgeBase.HeadingLevel != 3 || cfg.KnowledgeBase.Threshold != 0.35 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.KnowledgeBase.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.KnowledgeBase.Debounce)
	}
	if len(cfg.KnowledgeBase.ExtraStopwords) != 2 {
		t.Errorf("stopwords = %v", cfg.KnowledgeBase.ExtraStopwords)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
	// Defaults survive for keys the file leaves out.
	if cfg.KnowledgeBase.MaxAnswerChars != 1000 || cfg.Batch.Workers != 8 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}
