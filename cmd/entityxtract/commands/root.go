// Package commands implements the CLI commands for entityxtract.
package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "entityxtract",
	Short: "LLM-powered structured data extraction from documents",
	Long: `Entityxtract extracts structured objects from documents using LLMs.

Define the tables and strings you want, point it at a PDF, image, or
text file, and get one result per target in JSON, JSONL, or YAML.

Examples:
  # Extract targets defined in targets.yaml from an invoice
  entityxtract extract -d invoice.pdf -t targets.yaml

  # Use Anthropic with a specific model and four workers
  entityxtract extract -d invoice.pdf -t targets.yaml \
      -p anthropic -m claude-sonnet-4-20250514 --parallelism 4

  # Send page images instead of the raw file, with billed-cost lookup
  entityxtract extract -d scan.png -t targets.yaml \
      --input-modes image --calculate-costs`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.entityxtract.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	// Pick up a local .env before anything reads the environment.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".entityxtract")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("ENTITYXTRACT")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
