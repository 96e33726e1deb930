package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var restoreOutput string

var restoreCmd = &cobra.Command{
	Use:   "restore <session-id> [file]",
	Short: "Replace placeholders with the original values",
	Long: `Maps every placeholder in the input back to its original value using the
session's reference table. A placeholder that is not in the table aborts
the restore: partial re-identification is worse than none.

Pass "-" as the file to read from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "", "write restored text to file instead of stdout")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	if err := ensureServices(false); err != nil {
		return err
	}

	text, err := readInput(args[1])
	if err != nil {
		return err
	}

	restored, err := processor.Restore(context.Background(), args[0], text)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	return writeOutput(cmd, restoreOutput, restored)
}
