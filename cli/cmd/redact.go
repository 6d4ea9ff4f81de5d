package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/pkg/redact"
)

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Redact PII from text",
	Long: `Replaces email addresses, phone numbers, and patron barcodes with
redaction markers. Reads stdin when no argument is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) > 0 {
			text = strings.Join(args, " ")
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}

		fmt.Println(redact.Text(text))
		return nil
	},
}
