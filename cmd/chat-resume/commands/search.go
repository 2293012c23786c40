package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/webollama/chat-resume/internal/api"
)

// NewSearchCommand creates the search command
func NewSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search sessions without TUI",
		Long:  `Search sessions by keyword and print the matches with relevance scores.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := loadSetup(false)
			if err != nil {
				return err
			}
			return runSearch(client, strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func runSearch(client *api.Client, query string, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := client.SearchSessions(ctx, query, limit)
	if errors.Is(err, api.ErrEmptyQuery) {
		return fmt.Errorf("search query must not be empty")
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No sessions match %q\n", query)
		return nil
	}

	fmt.Printf("Sessions matching %q:\n", query)
	fmt.Println("=====================")
	printSummaries(results)
	return nil
}
