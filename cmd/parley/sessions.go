package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/store"
)

var sessionLimit int

// sessionsCmd lists recorded sessions and replays their history.
var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List recorded sessions or show one session's history",
	Long: `Without arguments, lists the most recently active session IDs.
With a session ID, prints that session's recorded turns in order.

Examples:
  parley sessions
  parley sessions 2f1c9a4e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("session history is disabled in config")
		}

		st, err := store.Open(cfg.History.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open session history: %w", err)
		}
		defer st.Close()

		if len(args) == 0 {
			ids, err := st.Sessions(sessionLimit)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No recorded sessions.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}

		entries, err := st.History(args[0], cfg.History.Limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No turns recorded for session %s\n", args[0])
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s [%d] %s: %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.TurnNumber, e.Role, e.Content)
		}
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionLimit, "limit", 20, "Maximum sessions to list")
}
