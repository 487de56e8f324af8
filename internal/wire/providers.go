package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/wire"

	"github.com/montarelab/rev-ai/internal/agent"
	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/db"
	"github.com/montarelab/rev-ai/internal/dedup"
	"github.com/montarelab/rev-ai/internal/jobs"
	"github.com/montarelab/rev-ai/internal/knowledge"
	"github.com/montarelab/rev-ai/internal/llm"
	"github.com/montarelab/rev-ai/internal/logger"
	"github.com/montarelab/rev-ai/internal/metrics"
	"github.com/montarelab/rev-ai/internal/review"
	"github.com/montarelab/rev-ai/internal/server"
	"github.com/montarelab/rev-ai/internal/server/handler"
	"github.com/montarelab/rev-ai/internal/state"
	"github.com/montarelab/rev-ai/internal/storage"
)

// ReviewGenerator drives the per-file reviewer agents.
type ReviewGenerator struct{ llm.Generator }

// SummaryGenerator writes the final summary.
type SummaryGenerator struct{ llm.Generator }

// AppSet is the provider set behind InitializeApp.
var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	server.NewRouter,
	handler.NewReviewHandler,
	metrics.New,
	provideLogger,
	provideDatabase,
	provideRunStore,
	provideDedupStore,
	provideStateManager,
	provideReviewGenerator,
	provideSummaryGenerator,
	llm.NewPromptManager,
	provideKnowledgeStore,
	provideLoader,
	provideSearcher,
	provideReviewerFactory,
	provideObserver,
	provideRunner,
	provideAggregator,
	provideOrchestrator,
	provideReviewJob,
	provideDispatcher,
	wire.Bind(new(jobs.Reviewer), new(*review.Orchestrator)),
	wire.Bind(new(core.Job), new(*jobs.ReviewJob)),
	wire.Bind(new(http.Handler), new(*chi.Mux)),
)

func provideLogger(cfg *config.Config) (*slog.Logger, func()) {
	w, closeLog := logger.Writer(cfg.Logging)
	return logger.NewLogger(cfg.Logging, w), closeLog
}

func provideDatabase(cfg *config.Config) (*db.DB, func(), error) {
	return db.NewDatabase(&cfg.Database)
}

func provideRunStore(conn *db.DB) storage.Store {
	return storage.NewStore(conn.DB)
}

func provideDedupStore(cfg *config.Config, conn *db.DB) dedup.Store {
	if cfg.Review.DedupBackend == "database" {
		return dedup.NewSQLStore(conn.DB)
	}
	return dedup.NewMemoryStore(cfg.Review.DedupTTL)
}

func provideStateManager(cfg *config.Config) *state.Manager {
	return state.NewManager(cfg.Review.StateTTL, cfg.Review.ResultTTL)
}

func provideReviewGenerator(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (ReviewGenerator, error) {
	gen, err := llm.NewGenerator(ctx, &cfg.AI, cfg.AI.GeneratorModel, logger)
	if err != nil {
		return ReviewGenerator{}, fmt.Errorf("failed to create generator LLM: %w", err)
	}
	resilient := llm.NewResilientGenerator(gen, cfg.AI.LLMProvider, llm.RetryConfigFrom(&cfg.AI), m, logger)
	return ReviewGenerator{resilient}, nil
}

// provideSummaryGenerator shares the review model client when the models match
// but always gets its own breaker and rate limiter, so a burst of failing
// reviewers cannot block the summary call.
func provideSummaryGenerator(ctx context.Context, cfg *config.Config, reviewGen ReviewGenerator, m *metrics.Metrics, logger *slog.Logger) (SummaryGenerator, error) {
	model := cfg.AI.SummaryModelName()
	var gen llm.Generator
	if r, ok := reviewGen.Generator.(*llm.ResilientGenerator); ok && model == cfg.AI.GeneratorModel {
		gen = r.Inner()
	} else {
		var err error
		gen, err = llm.NewGenerator(ctx, &cfg.AI, model, logger)
		if err != nil {
			return SummaryGenerator{}, fmt.Errorf("failed to create summary LLM: %w", err)
		}
	}
	resilient := llm.NewResilientGenerator(gen, cfg.AI.LLMProvider, llm.RetryConfigFrom(&cfg.AI), m, logger.With("component", "summary"))
	return SummaryGenerator{resilient}, nil
}

// provideKnowledgeStore returns nil when the embedder cannot be built and
// the knowledge base is disabled.
func provideKnowledgeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (knowledge.VectorStore, error) {
	embedder, err := llm.NewEmbedder(ctx, &cfg.AI, logger)
	if err != nil {
		if cfg.Knowledge.Enabled {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		logger.Warn("knowledge base unavailable", "error", err)
		return nil, nil
	}
	return knowledge.NewQdrantStore(cfg.AI.QdrantHost, cfg.Knowledge.Collection, embedder, logger), nil
}

func provideLoader(cfg *config.Config, store knowledge.VectorStore, logger *slog.Logger) *knowledge.Loader {
	if store == nil {
		return nil
	}
	return knowledge.NewLoader(store, knowledge.LoaderConfig{
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		BatchSize:    cfg.Knowledge.BatchSize,
	}, logger)
}

func provideSearcher(cfg *config.Config, store knowledge.VectorStore) agent.Searcher {
	if !cfg.Knowledge.Enabled || store == nil {
		return nil
	}
	return knowledge.NewRetriever(store, cfg.Knowledge.TopK)
}

func provideReviewerFactory(
	cfg *config.Config,
	gen ReviewGenerator,
	prompts *llm.PromptManager,
	store dedup.Store,
	searcher agent.Searcher,
	logger *slog.Logger,
) review.ReviewerFactory {
	reviewer := agent.New(gen.Generator, prompts, store, searcher, agent.Config{
		Provider:      llm.ModelProvider(cfg.AI.LLMProvider),
		MaxSteps:      cfg.AI.MaxAgentSteps,
		KnowledgeTopK: cfg.Knowledge.TopK,
	}, logger)
	return func(core.Task, core.ChangedFile) (core.Reviewer, error) {
		return reviewer, nil
	}
}

func provideObserver(st *state.Manager, sink app.ProgressSink) core.Observer {
	if sink == nil {
		return st
	}
	return core.Observers{st, sink}
}

func provideRunner(cfg *config.Config, observer core.Observer, m *metrics.Metrics, logger *slog.Logger) *review.Runner {
	return review.NewRunner(review.RunnerConfig{
		FileTimeout:    cfg.Review.FileTimeout,
		MaxConcurrency: cfg.Review.MaxConcurrency,
	}, observer, m, logger)
}

func provideAggregator(cfg *config.Config, gen SummaryGenerator, prompts *llm.PromptManager, logger *slog.Logger) *review.Aggregator {
	return review.NewAggregator(gen.Generator, prompts, llm.ModelProvider(cfg.AI.LLMProvider), cfg.AI.MaxContextTokens, logger)
}

func provideOrchestrator(
	cfg *config.Config,
	factory review.ReviewerFactory,
	runner *review.Runner,
	aggregator *review.Aggregator,
	st *state.Manager,
	runs storage.Store,
	observer core.Observer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *review.Orchestrator {
	opts := []review.Option{
		review.WithSinks(st, runs),
		review.WithObserver(observer),
		review.WithMetrics(m),
	}
	if !cfg.Review.KeepRaw {
		opts = append(opts, review.WithoutRaw())
	}
	return review.NewOrchestrator(factory, runner, aggregator, logger, opts...)
}

func provideReviewJob(cfg *config.Config, orchestrator jobs.Reviewer, st *state.Manager, logger *slog.Logger) *jobs.ReviewJob {
	return jobs.NewReviewJob(orchestrator, st, cfg.Review.Fetch, logger)
}

func provideDispatcher(cfg *config.Config, job core.Job, logger *slog.Logger) core.JobDispatcher {
	return jobs.NewDispatcher(job, cfg.Review.MaxJobs, logger)
}
