package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/cli/internal/output"
	"github.com/stacksos/aicore/services/generate"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Call outcome telemetry",
	Long:  "Commands for querying recorded call outcomes.",
}

var outcomesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent call outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		callType, _ := cmd.Flags().GetString("call-type")
		sinceStr, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		var since time.Time
		if sinceStr != "" {
			d, err := time.ParseDuration(sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since duration: %w", err)
			}
			since = time.Now().Add(-d)
		}

		base, err := loadBase()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, closeStore, err := buildStore(ctx, base)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}

		outcomes, err := store.List(ctx, generate.OutcomeQuery{
			CallType: callType,
			Since:    since,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list outcomes: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format)
			return w.Print(outcomes)
		}

		table := output.Table{
			Headers: []string{"TIME", "CALL TYPE", "PROVIDER", "MODEL", "STATUS", "ATTEMPTS", "TOKENS", "COST", "LATENCY"},
			Rows:    make([][]string, len(outcomes)),
		}
		for i, o := range outcomes {
			table.Rows[i] = []string{
				output.Timestamp(o.CreatedAt),
				o.CallType,
				string(o.Provider),
				output.Truncate(o.Model, 28),
				o.Status,
				fmt.Sprintf("%d", o.Attempts),
				fmt.Sprintf("%d", o.TotalTokens),
				fmt.Sprintf("$%.4f", o.CostUSD),
				fmt.Sprintf("%dms", o.LatencyMs),
			}
		}
		return output.NewWriter(cfg.Format).Print(table)
	},
}

func init() {
	outcomesListCmd.Flags().String("call-type", "", "Filter by call classification")
	outcomesListCmd.Flags().String("since", "", "Only outcomes newer than this duration (e.g. 24h)")
	outcomesListCmd.Flags().Int("limit", 50, "Maximum number of outcomes")

	outcomesCmd.AddCommand(outcomesListCmd)
}
