// Package servecmder provides the serve command for running the mnemo
// memory server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meridianlabs/mnemo/api"
	"github.com/meridianlabs/mnemo/api/mcp"
	"github.com/meridianlabs/mnemo/pkg/compliance"
	"github.com/meridianlabs/mnemo/pkg/config"
	"github.com/meridianlabs/mnemo/pkg/dotdir"
	"github.com/meridianlabs/mnemo/pkg/embeddings"
	embeddingutils "github.com/meridianlabs/mnemo/pkg/embeddings/utils"
	eventstreamutils "github.com/meridianlabs/mnemo/pkg/eventstream/utils"
	"github.com/meridianlabs/mnemo/pkg/extract"
	"github.com/meridianlabs/mnemo/pkg/logger"
	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/memory/distill"
	"github.com/meridianlabs/mnemo/pkg/memory/promote"
	"github.com/meridianlabs/mnemo/pkg/schedule"
	"github.com/meridianlabs/mnemo/pkg/session"
	"github.com/meridianlabs/mnemo/pkg/vector"
	vectorutils "github.com/meridianlabs/mnemo/pkg/vector/utils"
)

type ServeCommander struct {
	listen          string
	vectorProvider  string
	vectorTarget    string
	vectorDims      uint
	embeddingProv   string
	embeddingTarget string
	embeddingModel  string
	llmProvider     string
	llmModel        string
	llmTarget       string

	debug  bool
	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the mnemo memory server.

Serves the working-memory session API, the distillation and promotion
pipelines, semantic search, and the MCP endpoint on a single listener.
Promotion sweeps and session cleanup run on the configured schedules.

Examples:
  mnemo serve
  mnemo serve --listen :9090
  mnemo serve --vector-store-provider qdrant --vector-store-target localhost:6334`

const serveShortDesc string = "Run the mnemo memory server"

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStoreDims,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagLLMTarget,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorStoreDims, &cmder.vectorDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMProvider, &cmder.llmProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMTarget, &cmder.llmTarget)

	return cmd
}

func (c *ServeCommander) run(configDir string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
	)
	v := c.viper
	ctx := context.Background()

	// Session store
	sessions := session.NewStore(session.Config{
		MaxSessions: v.GetInt("session.max_sessions"),
		TTL:         time.Duration(v.GetInt("session.ttl_minutes")) * time.Minute,
		MaxTurns:    v.GetInt("session.max_turns"),
		Logger:      c.logger,
	})

	// Embedder shared by both tiers
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	episodicColl, semanticColl, err := c.newCollections(ctx, configDir, embedder)
	if err != nil {
		return err
	}
	defer episodicColl.Close()
	defer semanticColl.Close()

	episodic := memory.NewTier(episodicColl, "episodic", c.logger)
	semantic := memory.NewTier(semanticColl, "semantic", c.logger)

	// Fact extraction
	llmCall, err := extract.NewLLMCaller(extract.LLMCallerConfig{
		Provider: v.GetString("llm.provider"),
		Model:    v.GetString("llm.model"),
		APIKey:   v.GetString("llm.api_key"),
		BaseURL:  v.GetString("llm.target"),
	})
	if err != nil {
		return fmt.Errorf("creating llm caller: %w", err)
	}
	extractor := extract.NewLLMExtractor(llmCall)

	// Event stream
	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: v.GetString("eventstream.provider"),
		Brokers:      splitList(v.GetString("eventstream.brokers")),
		Topic:        v.GetString("eventstream.topic"),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	deduper := memory.NewDeduplicator(episodic, v.GetFloat64("distill.dedupe_threshold"), c.logger)

	distiller, err := distill.NewPipeline(distill.Config{
		Sessions:  sessions,
		Episodic:  episodic,
		Extractor: extractor,
		Deduper:   deduper,
		Publisher: publisher,
		Window:    v.GetInt("distill.window"),
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating distillation pipeline: %w", err)
	}

	promoter, err := promote.NewPipeline(promote.Config{
		Episodic:          episodic,
		Semantic:          semantic,
		Publisher:         publisher,
		SalienceThreshold: v.GetFloat64("promotion.salience_threshold"),
		CitationThreshold: v.GetInt("promotion.citation_threshold"),
		AgeDays:           v.GetInt("promotion.age_days"),
		ScanLimit:         v.GetInt("promotion.scan_limit"),
		Logger:            c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating promotion pipeline: %w", err)
	}

	// Scheduled jobs
	runner := schedule.NewRunner(c.logger)

	err = runner.Add(schedule.Job{
		Name: "promotion-sweep",
		Spec: v.GetString("promotion.schedule"),
		Run: func(ctx context.Context) error {
			result := promoter.Run(ctx)
			if result.Err != "" {
				return errors.New(result.Err)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	err = runner.Add(schedule.Job{
		Name: "session-cleanup",
		Spec: "@every 10m",
		Run: func(_ context.Context) error {
			sessions.CleanupExpired()
			return nil
		},
	})
	if err != nil {
		return err
	}

	if v.GetBool("compliance.enabled") {
		if err := c.addComplianceJob(ctx, runner, semantic); err != nil {
			return err
		}
	}

	// API server with the MCP endpoint mounted
	server, err := api.NewServer(api.Config{
		ListenAddr:         v.GetString("api.listen"),
		Sessions:           sessions,
		Distiller:          distiller,
		Promoter:           promoter,
		Episodic:           episodic,
		Semantic:           semantic,
		DistillEveryNTurns: v.GetInt("distill.every_n_turns"),
		Logger:             c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Semantic: semantic,
		Episodic: episodic,
		Sessions: sessions,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	server.MountMCP(mcpServer.Handler())

	runner.Start()
	defer runner.Stop()

	c.logger.Info("starting mnemo server",
		"listen", v.GetString("api.listen"),
		"vector_store", v.GetString("vector_store.provider"),
		"embedding_model", v.GetString("embedding.model"),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newCollections builds the episodic and semantic vector collections on a
// shared backend.
func (c *ServeCommander) newCollections(ctx context.Context, configDir string, embedder embeddings.Embedder) (vector.Collection, vector.Collection, error) {
	v := c.viper

	provider := v.GetString("vector_store.provider")
	target := v.GetString("vector_store.target")
	dims := v.GetUint("vector_store.dimensions")

	if (provider == "sqlitevec" || provider == "sqlite") && target == "" {
		target = c.defaultSQLitePath(configDir)
		c.logger.Info("using default sqlite-vec database", "path", target)
	}

	episodic, err := vectorutils.NewCollection(ctx, &vectorutils.NewCollectionOpts{
		ProviderType: provider,
		Target:       target,
		Name:         "episodic",
		Dimensions:   dims,
		Embedder:     embedder,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating episodic collection: %w", err)
	}

	semantic, err := vectorutils.NewCollection(ctx, &vectorutils.NewCollectionOpts{
		ProviderType: provider,
		Target:       target,
		Name:         "semantic",
		Dimensions:   dims,
		Embedder:     embedder,
		Logger:       c.logger,
	})
	if err != nil {
		episodic.Close()
		return nil, nil, fmt.Errorf("creating semantic collection: %w", err)
	}

	return episodic, semantic, nil
}

// defaultSQLitePath resolves the database path inside the .mnemo/ directory,
// falling back to an in-memory database when no directory resolves.
func (c *ServeCommander) defaultSQLitePath(configDir string) string {
	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil || target == "" {
		return ":memory:"
	}
	return filepath.Join(target, "mnemo.db")
}

func (c *ServeCommander) addComplianceJob(ctx context.Context, runner *schedule.Runner, semantic *memory.Tier) error {
	v := c.viper

	var sources []compliance.Source
	for _, u := range splitList(v.GetString("compliance.sources")) {
		sources = append(sources, compliance.Source{Name: u, URL: u})
	}
	clients := splitList(v.GetString("compliance.clients"))

	job := &compliance.Job{
		Crawler: compliance.NewCrawler(sources, c.logger),
		Builder: compliance.NewDigestBuilder(semantic, c.logger),
		Clients: clients,
		Logger:  c.logger,
	}

	if dsn := v.GetString("compliance.archive_dsn"); dsn != "" {
		archive, err := compliance.NewArchive(ctx, dsn, c.logger)
		if err != nil {
			return fmt.Errorf("creating compliance archive: %w", err)
		}
		job.Archive = archive
	}

	return runner.Add(schedule.Job{
		Name: "compliance-digest",
		Spec: v.GetString("compliance.schedule"),
		Run:  job.Run,
	})
}

// splitList parses a comma-separated config value into trimmed entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
