// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"

	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/llm"
	"github.com/montarelab/rev-ai/internal/metrics"
	"github.com/montarelab/rev-ai/internal/server"
	"github.com/montarelab/rev-ai/internal/server/handler"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context, cfg *config.Config, sink app.ProgressSink) (*app.App, func(), error) {
	logger, closeLog := provideLogger(cfg)
	metricsMetrics := metrics.New()

	dbConn, dbCleanup, err := provideDatabase(cfg)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	runs := provideRunStore(dbConn)
	dedupStore := provideDedupStore(cfg, dbConn)
	stateManager := provideStateManager(cfg)

	reviewGenerator, err := provideReviewGenerator(ctx, cfg, metricsMetrics, logger)
	if err != nil {
		dbCleanup()
		closeLog()
		return nil, nil, err
	}
	summaryGenerator, err := provideSummaryGenerator(ctx, cfg, reviewGenerator, metricsMetrics, logger)
	if err != nil {
		dbCleanup()
		closeLog()
		return nil, nil, err
	}
	promptManager, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		closeLog()
		return nil, nil, err
	}

	vectorStore, err := provideKnowledgeStore(ctx, cfg, logger)
	if err != nil {
		dbCleanup()
		closeLog()
		return nil, nil, err
	}
	loader := provideLoader(cfg, vectorStore, logger)
	searcher := provideSearcher(cfg, vectorStore)

	reviewerFactory := provideReviewerFactory(cfg, reviewGenerator, promptManager, dedupStore, searcher, logger)
	observer := provideObserver(stateManager, sink)
	runner := provideRunner(cfg, observer, metricsMetrics, logger)
	aggregator := provideAggregator(cfg, summaryGenerator, promptManager, logger)
	orchestrator := provideOrchestrator(cfg, reviewerFactory, runner, aggregator, stateManager, runs, observer, metricsMetrics, logger)
	reviewJob := provideReviewJob(cfg, orchestrator, stateManager, logger)
	dispatcher := provideDispatcher(cfg, reviewJob, logger)

	reviewHandler := handler.NewReviewHandler(dispatcher, stateManager, runs, logger)
	mux := server.NewRouter(reviewHandler, metricsMetrics, logger)
	serverServer := server.NewServer(cfg, mux, logger)

	application := app.NewApp(cfg, logger, metricsMetrics, stateManager, runs, reviewJob, loader, dispatcher, serverServer)
	return application, func() {
		dispatcher.Stop()
		dbCleanup()
		closeLog()
	}, nil
}
