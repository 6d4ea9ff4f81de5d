// Package cmd contains CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/cli/internal/config"
)

var (
	cfg        *config.Config
	format     string
	verbose    bool
	configPath string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "aicore",
	Short: "StacksOS AI Core - completion orchestration for the library portal",
	Long: `aicore drives the StacksOS generative-completion pipeline: budget
admission, provider calls with retry and model fallback, and outcome
telemetry.

Examples:
  # Run a one-off completion
  aicore generate --call-type summarize --user "Summarize this overdue notice..."

  # List recent call outcomes
  aicore outcomes list --call-type copilot --limit 20

  # Show configured providers
  aicore providers

  # Redact PII from text
  aicore redact "Contact reader@example.com or (555) 123-4567"

  # Apply the telemetry schema
  aicore migrate up
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.DefaultConfig()
		if format != "" {
			cfg.Format = format
		}
		if configPath != "" {
			cfg.TenantConfigPath = configPath
		}
		cfg.Verbose = verbose
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Tenant AI config YAML file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(outcomesCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(redactCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("aicore version 0.1.0")
	},
}
