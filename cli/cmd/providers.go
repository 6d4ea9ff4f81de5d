package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/cli/internal/output"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured completion providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := buildRegistry()
		ctx := context.Background()

		type providerInfo struct {
			Name      string   `json:"name" yaml:"name"`
			Available bool     `json:"available" yaml:"available"`
			Models    []string `json:"models" yaml:"models"`
		}

		var infos []providerInfo
		for _, p := range registry.List() {
			infos = append(infos, providerInfo{
				Name:      string(p.Name()),
				Available: p.Available(ctx),
				Models:    p.Models(),
			})
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			return output.NewWriter(cfg.Format).Print(infos)
		}

		table := output.Table{
			Headers: []string{"PROVIDER", "AVAILABLE", "MODELS"},
			Rows:    make([][]string, len(infos)),
		}
		for i, info := range infos {
			available := "no"
			if info.Available {
				available = "yes"
			}
			table.Rows[i] = []string{
				info.Name,
				available,
				output.Truncate(strings.Join(info.Models, ", "), 80),
			}
		}
		return output.NewWriter(cfg.Format).Print(table)
	},
}
