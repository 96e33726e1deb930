package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var scrubOutput string

var scrubCmd = &cobra.Command{
	Use:   "scrub [file]",
	Short: "De-identify a document and persist its reference table",
	Long: `Replaces detected PHI with placeholders and prints the scrubbed text.
The placeholder mapping is written to an encrypted per-session reference
table before any text is emitted; the printed session ID is what restore
needs to map the placeholders back.

Pass "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runScrub,
}

func init() {
	scrubCmd.Flags().StringVarP(&scrubOutput, "output", "o", "", "write scrubbed text to file instead of stdout")
	rootCmd.AddCommand(scrubCmd)
}

func runScrub(cmd *cobra.Command, args []string) error {
	if err := ensureServices(false); err != nil {
		return err
	}

	text, err := readInput(args[0])
	if err != nil {
		return err
	}

	result, err := processor.Scrub(context.Background(), splitSections(text))
	if err != nil {
		return fmt.Errorf("scrub failed: %w", err)
	}

	if err := writeOutput(cmd, scrubOutput, joinSections(result.Sections)); err != nil {
		return err
	}

	cmd.PrintErrf("session: %s\n", result.SessionID)
	cmd.PrintErrf("placeholders: %d\n", result.Placeholders)
	cmd.PrintErrf("reference table: %s\n", result.TablePath)
	return nil
}
