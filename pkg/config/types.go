package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Session     SessionConfig     `toml:"session"`
	Distill     DistillConfig     `toml:"distill"`
	Promotion   PromotionConfig   `toml:"promotion"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	EventStream EventStreamConfig `toml:"eventstream"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Compliance  ComplianceConfig  `toml:"compliance"`
}

// SessionConfig holds working-memory session store settings.
type SessionConfig struct {
	// MaxSessions caps the number of live sessions; the least-recently-used
	// session is evicted when a create would exceed it.
	MaxSessions int `toml:"max_sessions,omitempty"`

	// TTLMinutes is the idle lifetime of a session. Sessions older than this
	// since their last access are treated as absent.
	TTLMinutes int `toml:"ttl_minutes,omitempty"`

	// MaxTurns is the sliding-window length of the per-session turn ledger.
	MaxTurns int `toml:"max_turns,omitempty"`
}

// DistillConfig holds distillation pipeline settings.
type DistillConfig struct {
	// EveryNTurns is the turn-count trigger interval for distillation.
	EveryNTurns int `toml:"every_n_turns,omitempty"`

	// Window is the number of recent turns fed into one distillation run.
	Window int `toml:"window,omitempty"`

	// DedupeThreshold is the cosine-similarity score at or above which a new
	// candidate fact is considered a duplicate of an existing episodic fact
	// and dropped.
	DedupeThreshold float64 `toml:"dedupe_threshold,omitempty"`
}

// PromotionConfig holds episodic-to-semantic promotion settings.
type PromotionConfig struct {
	SalienceThreshold float64 `toml:"salience_threshold,omitempty"`
	CitationThreshold int     `toml:"citation_threshold,omitempty"`
	AgeDays           int     `toml:"age_days,omitempty"`

	// ScanLimit caps how many episodic candidates one scan may return.
	ScanLimit int `toml:"scan_limit,omitempty"`

	// Schedule is a cron expression for the periodic promotion sweep.
	Schedule string `toml:"schedule,omitempty"`
}

// VectorStoreConfig holds vector store settings shared by the episodic and
// semantic memory tiers.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// LLMConfig holds settings for the fact-extraction model.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EventStreamConfig holds event stream publisher settings.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running server.
type ClientConfig struct {
	// APITarget is the base URL of the mnemo API server.
	APITarget string `toml:"api_target,omitempty"`
}

// ComplianceConfig holds compliance digest job settings.
type ComplianceConfig struct {
	Enabled bool `toml:"enabled,omitempty"`

	// Schedule is a cron expression for the digest job.
	Schedule string `toml:"schedule,omitempty"`

	// Sources is a comma-separated list of URLs to crawl.
	Sources string `toml:"sources,omitempty"`

	// Clients is a comma-separated list of client names to digest.
	Clients string `toml:"clients,omitempty"`

	// ArchiveDSN is an optional PostgreSQL connection string for archiving
	// generated digests.
	ArchiveDSN string `toml:"archive_dsn,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(get func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if v := *get(c); v != 0 {
				return strconv.Itoa(v)
			}
			return ""
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			*get(c) = n
			return nil
		},
	}
}

func floatKey(get func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if v := *get(c); v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
			return ""
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float value %q: %w", v, err)
			}
			*get(c) = f
			return nil
		},
	}
}

func stringKey(get func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *get(c) },
		set: func(c *Config, v string) error { *get(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"session.max_sessions":         intKey(func(c *Config) *int { return &c.Session.MaxSessions }),
	"session.ttl_minutes":          intKey(func(c *Config) *int { return &c.Session.TTLMinutes }),
	"session.max_turns":            intKey(func(c *Config) *int { return &c.Session.MaxTurns }),
	"distill.every_n_turns":        intKey(func(c *Config) *int { return &c.Distill.EveryNTurns }),
	"distill.window":               intKey(func(c *Config) *int { return &c.Distill.Window }),
	"distill.dedupe_threshold":     floatKey(func(c *Config) *float64 { return &c.Distill.DedupeThreshold }),
	"promotion.salience_threshold": floatKey(func(c *Config) *float64 { return &c.Promotion.SalienceThreshold }),
	"promotion.citation_threshold": intKey(func(c *Config) *int { return &c.Promotion.CitationThreshold }),
	"promotion.age_days":           intKey(func(c *Config) *int { return &c.Promotion.AgeDays }),
	"promotion.scan_limit":         intKey(func(c *Config) *int { return &c.Promotion.ScanLimit }),
	"promotion.schedule":           stringKey(func(c *Config) *string { return &c.Promotion.Schedule }),
	"vector_store.provider":        stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":          stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.dimensions": {
		get: func(c *Config) string {
			if c.VectorStore.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.VectorStore.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.dimensions: %w", err)
			}
			c.VectorStore.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.provider":     stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":       stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":        stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"llm.provider":           stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":              stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.target":             stringKey(func(c *Config) *string { return &c.LLM.Target }),
	"llm.api_key":            stringKey(func(c *Config) *string { return &c.LLM.APIKey }),
	"eventstream.provider":   stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":    stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":      stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target":      stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"compliance.schedule":    stringKey(func(c *Config) *string { return &c.Compliance.Schedule }),
	"compliance.sources":     stringKey(func(c *Config) *string { return &c.Compliance.Sources }),
	"compliance.clients":     stringKey(func(c *Config) *string { return &c.Compliance.Clients }),
	"compliance.archive_dsn": stringKey(func(c *Config) *string { return &c.Compliance.ArchiveDSN }),
	"compliance.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Compliance.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for compliance.enabled: %w", err)
			}
			c.Compliance.Enabled = b
			return nil
		},
	},
}
