package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/askwiki/internal/docparse"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Auth          AuthConfig          `yaml:"auth"`
	Batch         BatchConfig         `yaml:"batch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.KnowledgeBase.Validate(); err != nil {
		return fmt.Errorf("knowledge_base: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// KnowledgeBaseConfig describes the source document and how it is indexed
// and matched.
type KnowledgeBaseConfig struct {
	// Source is the path of the wiki export.
	Source string `yaml:"source"`
	// Format is html, markdown, docx or pdf. Empty means infer from Source.
	Format         string        `yaml:"format"`
	HeadingLevel   int           `yaml:"heading_level"`
	Threshold      float64       `yaml:"threshold"`
	MinTokenLength int           `yaml:"min_token_length"`
	ExtraStopwords []string      `yaml:"extra_stopwords"`
	MaxAnswerChars int           `yaml:"max_answer_chars"`
	Watch          bool          `yaml:"watch"`
	Debounce       time.Duration `yaml:"debounce"`
}

// Validate validates the knowledge base configuration.
func (c *KnowledgeBaseConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.HeadingLevel, validation.Required, validation.Min(1), validation.Max(6)),
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MinTokenLength, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxAnswerChars, validation.Required, validation.Min(1)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if math.IsNaN(c.Threshold) {
		return errors.New("threshold: must be a number")
	}
	_, err := c.ResolveFormat()
	return err
}

// ResolveFormat returns the configured format, or the one implied by the
// source file extension. Unknown extensions fall back to HTML.
func (c *KnowledgeBaseConfig) ResolveFormat() (docparse.Format, error) {
	if c.Format != "" {
		return docparse.ParseFormat(c.Format)
	}
	f, err := docparse.FormatFromName(c.Source)
	if err != nil {
		return docparse.FormatHTML, nil
	}
	return f, nil
}

// CatalogConfig holds the SQLite build catalog configuration. An empty
// Path disables the catalog.
type CatalogConfig struct {
	Path    string `yaml:"path"`
	History int    `yaml:"history"`
}

// Enabled reports whether generations are recorded.
func (c *CatalogConfig) Enabled() bool { return c.Path != "" }

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.History, validation.Min(0)),
	)
}

// BatchConfig bounds the batch question endpoint.
type BatchConfig struct {
	Workers      int `yaml:"workers"`
	MaxQuestions int `yaml:"max_questions"`
}

// Validate validates the batch configuration.
func (c *BatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
		validation.Field(&c.MaxQuestions, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return errors.New("auth: mode is \"token\" but token is empty")
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Source:         "./knowledge_base.html",
			HeadingLevel:   docparse.DefaultHeadingLevel,
			Threshold:      0.2,
			MinTokenLength: 2,
			MaxAnswerChars: 1000,
			Watch:          true,
			Debounce:       200 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Path:    "./askwiki.db",
			History: 50,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Batch: BatchConfig{
			Workers:      8,
			MaxQuestions: 100,
		},
	}
}
