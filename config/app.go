package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/vaultflow/validation"
)

// AppConfig is the full vaultflow configuration.
type AppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Vault         VaultConfig         `yaml:"vault" mapstructure:"vault"`
	Agents        AgentsConfig        `yaml:"agents" mapstructure:"agents"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" mapstructure:"scheduler"`
	Search        SearchConfig        `yaml:"search" mapstructure:"search"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Transcribe    TranscribeConfig    `yaml:"transcribe" mapstructure:"transcribe"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// VaultConfig locates the note vault and its well-known folders.
type VaultConfig struct {
	Path    string  `yaml:"path" mapstructure:"path" validate:"required"`
	Folders Folders `yaml:"folders" mapstructure:"folders"`
}

// Folders are vault-relative folder names.
type Folders struct {
	Sources   string `yaml:"sources" mapstructure:"sources"`
	Summaries string `yaml:"summaries" mapstructure:"summaries"`
	Entities  string `yaml:"entities" mapstructure:"entities"`
	Index     string `yaml:"index" mapstructure:"index"`
	Logs      string `yaml:"logs" mapstructure:"logs"`
	Daily     string `yaml:"daily" mapstructure:"daily"`
	Weekly    string `yaml:"weekly" mapstructure:"weekly"`
	Inbox     string `yaml:"inbox" mapstructure:"inbox"`
}

// AgentsConfig points at the agent document used by the schedule command.
type AgentsConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Timezone string `yaml:"timezone" mapstructure:"timezone" validate:"omitempty,timezone"`
}

// SchedulerConfig tunes the cron scheduler.
type SchedulerConfig struct {
	Workers      int           `yaml:"workers" mapstructure:"workers" validate:"min=1"`
	Tick         time.Duration `yaml:"tick" mapstructure:"tick" validate:"gt=0"`
	MisfireGrace time.Duration `yaml:"misfire_grace" mapstructure:"misfire_grace" validate:"gte=0"`
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxResults int           `yaml:"max_results" mapstructure:"max_results" validate:"gte=0"`
	// RatePerSecond limits outgoing search requests; zero disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second" validate:"gte=0"`
	Language      string  `yaml:"language" mapstructure:"language"`
}

// VectorConfig configures the vector index and embedding service.
type VectorConfig struct {
	URL        string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	Collection string        `yaml:"collection" mapstructure:"collection"`
	VectorSize int           `yaml:"vector_size" mapstructure:"vector_size" validate:"gte=0"`
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
	Retries    int           `yaml:"retries" mapstructure:"retries" validate:"gte=0"`
	Backoff    time.Duration `yaml:"backoff" mapstructure:"backoff" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	EmbedURL   string        `yaml:"embed_url" mapstructure:"embed_url" validate:"omitempty,url"`
	EmbedModel string        `yaml:"embed_model" mapstructure:"embed_model"`
}

// TranscribeConfig names the external speech-to-text command.
// Args may contain {file} and {model}, replaced per audio file.
type TranscribeConfig struct {
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args" mapstructure:"args"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig configures the scheduler admin API.
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	AdminSecret string `yaml:"admin_secret" mapstructure:"admin_secret"`
	// TriggerRate limits manual job triggers per caller, per second.
	TriggerRate float64 `yaml:"trigger_rate" mapstructure:"trigger_rate" validate:"gte=0"`
	// Events enables the GET /jobs/events state stream.
	Events bool `yaml:"events" mapstructure:"events"`
}

// ObservabilityConfig configures OTLP tracing and metrics export.
type ObservabilityConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	MetricsEnabled bool    `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ApplyEnvOverrides applies the legacy AI_STACK_* environment variables.
// AI_STACK_DEFAULT_VAULT only fills an unset vault path; the others override.
func (c *AppConfig) ApplyEnvOverrides() {
	if v := os.Getenv("AI_STACK_DEFAULT_VAULT"); v != "" && c.Vault.Path == "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("AI_STACK_TZ"); v != "" {
		c.Agents.Timezone = v
	}
	if v := os.Getenv("AI_STACK_QDRANT_URL"); v != "" {
		c.Vector.URL = v
	}
	if v := os.Getenv("AI_STACK_QDRANT_COLLECTION"); v != "" {
		c.Vector.Collection = v
	}
	if v := os.Getenv("AI_STACK_QDRANT_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Vector.BatchSize = n
		}
	}
	if v := os.Getenv("AI_STACK_EMB_MODEL"); v != "" {
		c.Vector.EmbedModel = v
	}
}

// ApplyDefaults fills every unset field.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()

	if c.Vault.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Vault.Path = filepath.Join(home, "Vault")
		}
	}
	f := &c.Vault.Folders
	setDefault(&f.Sources, "Sources")
	setDefault(&f.Summaries, "Summaries")
	setDefault(&f.Entities, "Entities")
	setDefault(&f.Index, "Index")
	setDefault(&f.Logs, "Logs")
	setDefault(&f.Daily, "Notes/Journal/Daily")
	setDefault(&f.Weekly, "Notes/Journal/Weekly")
	setDefault(&f.Inbox, "Inbox/Audio")

	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 4
	}
	if c.Scheduler.Tick == 0 {
		c.Scheduler.Tick = time.Second
	}
	if c.Scheduler.MisfireGrace == 0 {
		c.Scheduler.MisfireGrace = 300 * time.Second
	}

	setDefault(&c.Search.BaseURL, "http://localhost:8888")
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 20 * time.Second
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 10
	}

	setDefault(&c.Vector.URL, "http://localhost:6333")
	setDefault(&c.Vector.Collection, "ai_research")
	setDefault(&c.Vector.EmbedURL, "http://localhost:11434")
	setDefault(&c.Vector.EmbedModel, "all-minilm")
	if c.Vector.VectorSize == 0 {
		c.Vector.VectorSize = 384
	}
	if c.Vector.BatchSize == 0 {
		c.Vector.BatchSize = 128
	}
	if c.Vector.Retries == 0 {
		c.Vector.Retries = 2
	}
	if c.Vector.Backoff == 0 {
		c.Vector.Backoff = 500 * time.Millisecond
	}
	if c.Vector.Timeout == 0 {
		c.Vector.Timeout = 30 * time.Second
	}

	setDefault(&c.Transcribe.Command, "whisper-cli")
	if len(c.Transcribe.Args) == 0 {
		c.Transcribe.Args = []string{"--model", "{model}", "--output-txt", "--no-prints", "{file}"}
	}
	setDefault(&c.Transcribe.Model, "small")
	if c.Transcribe.Timeout == 0 {
		c.Transcribe.Timeout = 30 * time.Minute
	}

	setDefault(&c.Server.Host, "127.0.0.1")
	if c.Server.Port == 0 {
		c.Server.Port = 8765
	}
	if c.Server.TriggerRate == 0 {
		c.Server.TriggerRate = 1
	}

	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1
	}
	setDefault(&c.Observability.Endpoint, "localhost:4318")
}

// Validate checks the configuration after defaults are applied.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Server.Enabled && c.Server.AdminSecret != "" && len(c.Server.AdminSecret) < 16 {
		return fmt.Errorf("config: server.admin_secret must be at least 16 characters")
	}
	return nil
}

// Location returns the configured scheduler time zone, or the local zone.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Agents.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Agents.Timezone)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
