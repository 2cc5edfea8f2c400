package config

const (
	defaultMaxSessions = 1000
	defaultTTLMinutes  = 60
	defaultMaxTurns    = 50

	defaultDistillEveryNTurns = 10
	defaultDistillWindow      = 20
	defaultDedupeThreshold    = 0.9

	defaultSalienceThreshold = 0.7
	defaultCitationThreshold = 3
	defaultAgeDays           = 7
	defaultScanLimit         = 100
	defaultPromotionSchedule = "0 * * * *"

	defaultVectorProvider   = "sqlitevec"
	defaultVectorDimensions = 768

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "nomic-embed-text"

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"
	defaultLLMTarget   = "http://localhost:11434"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "mnemo.memory.events"

	defaultAPIListen = ":8082"

	defaultClientAPITarget = "http://localhost:8082"

	defaultComplianceSchedule = "0 6 * * *"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Session: SessionConfig{
			MaxSessions: defaultMaxSessions,
			TTLMinutes:  defaultTTLMinutes,
			MaxTurns:    defaultMaxTurns,
		},
		Distill: DistillConfig{
			EveryNTurns:     defaultDistillEveryNTurns,
			Window:          defaultDistillWindow,
			DedupeThreshold: defaultDedupeThreshold,
		},
		Promotion: PromotionConfig{
			SalienceThreshold: defaultSalienceThreshold,
			CitationThreshold: defaultCitationThreshold,
			AgeDays:           defaultAgeDays,
			ScanLimit:         defaultScanLimit,
			Schedule:          defaultPromotionSchedule,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Dimensions: defaultVectorDimensions,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
			Model:    defaultEmbeddingModel,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
			Target:   defaultLLMTarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Compliance: ComplianceConfig{
			Schedule: defaultComplianceSchedule,
		},
	}
}
