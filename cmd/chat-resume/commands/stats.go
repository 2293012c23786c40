package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print session counts from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := loadSetup(false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			stats, err := client.FetchStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch stats: %w", err)
			}
			if stats == nil {
				fmt.Println("No stats available")
				return nil
			}

			fmt.Println("Session Stats:")
			fmt.Println("==============")
			fmt.Printf("Total:    %d\n", stats.TotalSessions)
			fmt.Printf("Active:   %d\n", stats.ActiveSessions)
			fmt.Printf("Archived: %d\n", stats.ArchivedSessions)
			fmt.Printf("Loaded:   %d\n", stats.CurrentlyLoaded)
			return nil
		},
	}
}
