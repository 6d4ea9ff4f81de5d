package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/cli/internal/output"
	"github.com/stacksos/aicore/pkg/telemetry"
	"github.com/stacksos/aicore/services/generate"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a one-off orchestrated completion",
	Long: `Runs one completion through the full pipeline: budget admission,
retry/fallback orchestration, and outcome telemetry. Provider
credentials come from ANTHROPIC_API_KEY / OPENAI_API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		user, _ := cmd.Flags().GetString("user")
		callType, _ := cmd.Flags().GetString("call-type")
		model, _ := cmd.Flags().GetString("model")
		actor, _ := cmd.Flags().GetString("actor")
		raw, _ := cmd.Flags().GetBool("raw")
		timeoutSec, _ := cmd.Flags().GetInt("timeout")

		if user == "" {
			return fmt.Errorf("--user is required")
		}

		base, err := loadBase()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
		defer cancel()

		tel, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:     base.ServiceName,
			ServiceVersion:  base.Version,
			Environment:     base.Environment,
			OTLPEndpoint:    base.OTLPEndpoint,
			TracingEnabled:  base.TracingEnabled,
			TracingSampling: base.TracingSampling,
			LogLevel:        base.LogLevel,
			LogFormat:       base.LogFormat,
		})
		if err != nil {
			return err
		}
		defer tel.Shutdown(context.Background())

		logger := tel.Logger()
		if !verbose {
			logger = buildLogger()
		}

		store, closeStore, err := buildStore(ctx, base)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}

		gate, closeGate := buildGate(ctx, base, logger)
		if closeGate != nil {
			defer closeGate()
		}

		runtimeCfg, err := generate.LoadRuntimeConfig(cfg.TenantConfigPath)
		if err != nil {
			return err
		}
		if model != "" {
			runtimeCfg.Model = model
		}

		o := generate.NewOrchestrator(
			generate.StaticConfig(runtimeCfg),
			buildRegistry(),
			gate,
			generate.NewStoreRecorder(store),
			logger,
		).WithTuning(generate.LoadTuning())

		validate := func(raw string) (any, error) { return raw, nil }
		if !raw {
			v := generate.JSONValidator[map[string]any]()
			validate = func(text string) (any, error) { return v.Validate(text) }
		}

		result, err := o.Generate(ctx, generate.Request{
			System:   system,
			User:     user,
			CallType: callType,
			ActorID:  actor,
		}, validate)
		if err != nil {
			return err
		}
		o.Flush()

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(map[string]any{
				"data":     result.Data,
				"provider": result.Completion.Provider,
				"model":    result.Completion.Model,
				"usage":    result.Completion.Usage,
			})
		}

		fmt.Println(result.Completion.Text)
		if verbose {
			output.Info("provider=%s model=%s tokens=%d cost=$%.4f",
				result.Completion.Provider,
				result.Completion.Model,
				result.Completion.Usage.TotalTokens,
				result.Completion.Usage.CostUSD,
			)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().String("system", "", "System prompt")
	generateCmd.Flags().String("user", "", "User prompt (required)")
	generateCmd.Flags().String("call-type", "adhoc", "Call classification for timeout/retry tuning")
	generateCmd.Flags().String("model", "", "Model override")
	generateCmd.Flags().String("actor", "", "Acting staff or patron identifier for the audit trail")
	generateCmd.Flags().Bool("raw", false, "Skip strict JSON validation of the completion")
	generateCmd.Flags().Int("timeout", 120, "Overall command timeout in seconds")
}
