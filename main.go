package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"top_criteria_generator/catalog"
	"top_criteria_generator/config"
	"top_criteria_generator/generator"
	"top_criteria_generator/schema"
)

var (
	verbose    bool
	configPath string
	envFile    string
	catalogDir string
)

const defaultConfigPath = "config/config.json"

var rootCmd = &cobra.Command{
	Use:   "topcriteria",
	Short: "Generate schema-validated 'top casinos by criteria' sections",
	Long: `topcriteria builds a prompt from catalog data, asks the configured model for a
structured snapshot, validates it against the card schema and serves or prints it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config.json or config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalog", "", "directory holding data/reference.json and data/casinos.json (default: embedded mock catalog)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(promptCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// loadConfig reads --config. The default path may be absent, in which case
// environment and defaults apply.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

func loadCatalog() (*catalog.Store, error) {
	if catalogDir == "" {
		return catalog.Default()
	}
	return catalog.Load(os.DirFS(catalogDir))
}

func llmSettings(cfg config.Config) generator.LLMSettings {
	return generator.LLMSettings{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		BaseURL:   cfg.LLM.BaseURL,
	}
}

func buildAgent(cfg config.Config, log *zap.Logger) (*generator.Agent, generator.LLMSettings, error) {
	settings := llmSettings(cfg)
	llm, err := generator.NewLLM(settings)
	if err != nil {
		return nil, settings, err
	}
	timeout, err := cfg.Generation.TimeoutDuration()
	if err != nil {
		return nil, settings, err
	}
	var regOpts []schema.Option
	if cfg.Generation.EnforceUniqueWinners {
		regOpts = append(regOpts, schema.WithUniqueWinners())
	}
	agent, err := generator.NewAgent(llm,
		generator.WithRegistry(schema.NewRegistry(regOpts...)),
		generator.WithEntityLimit(cfg.Prompt.EntityLimit),
		generator.WithTemperature(*cfg.Generation.Temperature),
		generator.WithTimeout(timeout),
		generator.WithLogger(log),
	)
	return agent, settings, err
}

// contextFor resolves the generation context for a catalog page.
func contextFor(store *catalog.Store, slug, criteria string) (generator.GenerationContext, error) {
	page, ok := store.PageBySlug(slug)
	if !ok {
		return generator.GenerationContext{}, fmt.Errorf("page %q not found in catalog", slug)
	}
	return generator.ResolveContext(store, page, store.Casinos(), criteria), nil
}
