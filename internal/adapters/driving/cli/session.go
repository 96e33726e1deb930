package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeDays int

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage document sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete sessions and their reference tables past the retention window",
	Args:  cobra.NoArgs,
	RunE:  runSessionPurge,
}

func init() {
	sessionPurgeCmd.Flags().IntVar(&purgeDays, "older-than", 0, "retention window in days (default: configured retention_days)")
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionPurgeCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(false); err != nil {
		return err
	}

	sessions, err := sessionMgr.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		cmd.Println("no sessions")
		return nil
	}

	cmd.Printf("%-38s %-11s %-12s %s\n", "ID", "STATE", "PLACEHOLDERS", "CREATED")
	for _, s := range sessions {
		cmd.Printf("%-38s %-11s %-12d %s\n", s.ID, s.State, s.Placeholders,
			s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	if err := ensureServices(false); err != nil {
		return err
	}

	session, err := sessionMgr.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}

	cmd.Printf("id:           %s\n", session.ID)
	cmd.Printf("state:        %s\n", session.State)
	cmd.Printf("placeholders: %d\n", session.Placeholders)
	cmd.Printf("encrypted:    %t\n", session.Encrypted)
	cmd.Printf("table:        %s\n", session.TablePath)
	cmd.Printf("created:      %s\n", session.CreatedAt.Local().Format(time.RFC3339))
	cmd.Printf("updated:      %s\n", session.UpdatedAt.Local().Format(time.RFC3339))
	return nil
}

func runSessionPurge(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(false); err != nil {
		return err
	}

	days := purgeDays
	if days == 0 {
		days = engineCfg.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("no retention window: pass --older-than or set retention_days in the config")
	}

	purged, err := sessionMgr.Purge(context.Background(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("purging sessions: %w", err)
	}
	cmd.Printf("purged %d sessions older than %d days\n", purged, days)
	return nil
}
