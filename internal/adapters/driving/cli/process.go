package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var processOutput string

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Scrub, enhance and restore a document end to end",
	Long: `Runs the full pipeline: de-identifies the document, sends the scrubbed
text to the configured enhancement provider section by section, then maps
the placeholders back to the original values.

Sections whose enhancement fails after retries are kept in their original
wording rather than dropped. Pass "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "write the final document to file instead of stdout")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if err := ensureServices(true); err != nil {
		return err
	}

	text, err := readInput(args[0])
	if err != nil {
		return err
	}

	result, err := processor.Process(context.Background(), splitSections(text))
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}

	if err := writeOutput(cmd, processOutput, joinSections(result.Sections)); err != nil {
		return err
	}

	cmd.PrintErrf("session: %s\n", result.SessionID)
	for _, name := range result.Failed {
		cmd.PrintErrf("warning: section %q kept its original wording (enhancement failed)\n", name)
	}
	return nil
}
