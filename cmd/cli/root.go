package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/montarelab/rev-ai/internal/config"
)

var (
	providerFlag       string
	modelFlag          string
	embeddingModelFlag string
	apiKeyFlag         string
	verbose            bool
)

var rootCmd = &cobra.Command{
	Use:   "rev-ai",
	Short: "rev-ai reviews the changes between two git branches with a team of AI agents.",
	Long: `rev-ai reviews every file changed between two branches of a local repository,
one reviewer agent per file, and merges the findings into a single merge decision.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&providerFlag, "provider", "", "LLM provider (ollama, gemini, anthropic)")
	flags.StringVar(&modelFlag, "model", "", "Model used by the reviewer agents")
	flags.StringVar(&embeddingModelFlag, "embedding-model", "", "Model used for knowledge embeddings")
	flags.StringVar(&apiKeyFlag, "api-key", "", "API key for the selected provider")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output with timing information")

	bindings := map[string]string{
		"ai.llm_provider":    "provider",
		"ai.generator_model": "model",
		"ai.embedder_model":  "embedding-model",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			errorColor.Fprintf(os.Stderr, "Error binding flag %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

// loadConfig reads the configuration and applies the flags that have no
// single config key.
func loadConfig() (*config.Config, error) {
	if apiKeyFlag != "" {
		viper.Set("ai.gemini_api_key", apiKeyFlag)
		viper.Set("ai.anthropic_api_key", apiKeyFlag)
	}
	if verbose {
		viper.Set("logging.level", "debug")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\n\nTip: Check config.yaml and REVAI_* environment variables", err)
	}
	return cfg, nil
}
