package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/meridianlabs/mnemo/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MNEMO_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MNEMO_API_LISTEN, MNEMO_SESSION_MAX_SESSIONS, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MNEMO_SESSION_TTL_MINUTES, MNEMO_LLM_API_KEY, etc.
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Session
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("session.ttl_minutes", d.Session.TTLMinutes)
	v.SetDefault("session.max_turns", d.Session.MaxTurns)

	// Distillation
	v.SetDefault("distill.every_n_turns", d.Distill.EveryNTurns)
	v.SetDefault("distill.window", d.Distill.Window)
	v.SetDefault("distill.dedupe_threshold", d.Distill.DedupeThreshold)

	// Promotion
	v.SetDefault("promotion.salience_threshold", d.Promotion.SalienceThreshold)
	v.SetDefault("promotion.citation_threshold", d.Promotion.CitationThreshold)
	v.SetDefault("promotion.age_days", d.Promotion.AgeDays)
	v.SetDefault("promotion.scan_limit", d.Promotion.ScanLimit)
	v.SetDefault("promotion.schedule", d.Promotion.Schedule)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.dimensions", d.VectorStore.Dimensions)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.target", d.LLM.Target)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Compliance
	v.SetDefault("compliance.enabled", d.Compliance.Enabled)
	v.SetDefault("compliance.schedule", d.Compliance.Schedule)
}
