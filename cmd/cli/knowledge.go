package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/montarelab/rev-ai/internal/wire"
)

var loadKnowledgeCmd = &cobra.Command{
	Use:   "load-knowledge <dir>",
	Short: "Index the Markdown files of a directory into the knowledge base",
	Long: `Walks dir for *.md files, splits them into overlapping chunks and writes the
chunks to the knowledge collection used by the reviewer agents.

Examples:
  rev-ai load-knowledge ./docs/guidelines`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := wire.InitializeApp(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		if app.Loader == nil {
			return errors.New("knowledge store is unavailable\n\nTip: Check ai.qdrant_host and the embedder configuration")
		}

		titleColor.Printf("📚 Loading knowledge from %s\n", args[0])
		stats, err := app.Loader.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load knowledge: %w", err)
		}

		successColor.Printf("✓ Indexed %d chunks from %d files", stats.Chunks, stats.Files)
		dimColor.Printf(" (%d batches, %s)\n", stats.Batches, stats.Duration.Round(time.Millisecond))
		if !cfg.Knowledge.Enabled {
			warnColor.Println("⚠️  knowledge.enabled is false: reviewers will not search this collection")
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := wire.InitializeApp(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		errCh := make(chan error, 1)
		go func() {
			errCh <- app.Start()
		}()

		titleColor.Printf("🌐 Listening on :%s\n", cfg.Server.Port)
		return waitForShutdown(ctx, app, errCh)
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(loadKnowledgeCmd)
	rootCmd.AddCommand(serveCmd)
}
