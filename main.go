package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/grounded-agent/server/internal/agent/graph"
	"github.com/grounded-agent/server/internal/agent/graph/conversations"
	"github.com/grounded-agent/server/internal/agent/model"
	"github.com/grounded-agent/server/internal/agent/planner"
	"github.com/grounded-agent/server/internal/agent/repo"
	"github.com/grounded-agent/server/internal/agent/retrieval"
	"github.com/grounded-agent/server/internal/agent/tools"
	"github.com/grounded-agent/server/internal/core"
	errx "github.com/grounded-agent/server/internal/core/error"
	"github.com/grounded-agent/server/internal/guard"
	"github.com/grounded-agent/server/internal/telemetry"
	logx "github.com/grounded-agent/server/pkg/logger"
	pkgredis "github.com/grounded-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure. Redis is optional: without a URL the conversation
	// history lives in process memory only.
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	BaseURL string `envconfig:"OPENAI_BASE_URL"`

	// Agent configs
	Planner      model.PlannerModelConfig
	Retrieval    model.RetrievalConfig
	Agent        model.AgentConfig
	Guard        model.GuardConfig
	Tools        model.ToolsConfig
	Conversation model.ConversationConfig
}

// userFacingFailure is printed on any fatal turn error. Internals stay in
// the logs; the user only ever sees the error kind as a reference code.
const userFacingFailure = "Sorry, something went wrong while answering your question. Please try again."

func main() {
	root := &cobra.Command{
		Use:           "grounded-agent",
		Short:         "Grounded question answering over internal documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAskCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAskCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer with its sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), conversationID, args[0])
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to continue (default: a fresh one)")
	return cmd
}

func runAsk(ctx context.Context, conversationID, query string) error {
	if err := godotenv.Load(".env"); err != nil {
		logx.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	engine, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	turnCtx := ctx
	if cfg.Agent.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Agent.TurnTimeout)*time.Second)
		defer cancel()
	}

	result, err := engine.RunTurn(turnCtx, conversationID, query)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("turn failed")
		fmt.Println(userFacingFailure)
		return fmt.Errorf("reference code: %s", errx.KindOf(err))
	}

	fmt.Println(result.Answer)
	if len(result.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range result.Citations {
			fmt.Printf("  - %s\n", c.Key())
		}
	}
	return nil
}

// buildEngine wires the full turn pipeline from config: conversation
// store (Redis or in-memory), planner, local retrieval index, tool
// registry, guardrails and telemetry.
func buildEngine(cfg AppConfig) (*graph.Engine, func(), error) {
	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(openaiCfg)

	cleanup := func() {}
	var conversationRepo model.ConversationRepository
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, nil, fmt.Errorf("initialise redis client: %w", err)
		}
		cleanup = func() { rdb.Close() }

		ttl, err := time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
		}
		conversationRepo = repo.NewRedisConversationRepository(rdb, ttl)
	} else {
		logx.Info().Msg("no redis configured, conversation history is in-memory only")
		conversationRepo = repo.NewMemoryConversationRepository()
	}

	// A missing or unreadable index is not fatal: the agent still runs,
	// every retrieval reports unavailable, and answers come out hedged.
	var retriever retrieval.Retriever
	embedder := retrieval.NewOpenAIEmbedder(client, cfg.Retrieval.EmbeddingModel)
	if idx, err := retrieval.OpenLocalIndex(cfg.Retrieval.IndexPath, embedder); err != nil {
		logx.Warn().Err(err).Str("path", cfg.Retrieval.IndexPath).Msg("retrieval index unavailable")
	} else {
		logx.Info().Str("index", idx.String()).Msg("retrieval index loaded")
		retriever = idx
	}

	sink := telemetry.NewLogSink(0)
	prevCleanup := cleanup
	cleanup = func() {
		sink.Close()
		prevCleanup()
	}

	engine, err := graph.NewEngine(
		planner.NewOpenAIPlanner(client, cfg.Planner),
		retriever,
		tools.NewRegistry(cfg.Tools),
		guard.New(cfg.Guard.Domains()),
		conversations.NewMessagesManager(conversationRepo, cfg.Conversation),
		sink,
		graph.Config{Agent: cfg.Agent, Retrieval: cfg.Retrieval},
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, cleanup, nil
}
