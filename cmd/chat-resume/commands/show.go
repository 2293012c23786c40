package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/webollama/chat-resume/internal/api"
	"github.com/webollama/chat-resume/internal/history"
	"github.com/webollama/chat-resume/internal/render"
	"github.com/webollama/chat-resume/pkg/models"
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show sessions or one session's details without TUI",
		Long: `Show sessions in a non-interactive format.
Without arguments: lists recent sessions
With a session ID: shows that session's entities, recent messages and similar sessions`,
		RunE: runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	_, client, _, err := loadSetup(false)
	if err != nil {
		return err
	}

	switch len(args) {
	case 0:
		return showSessions(client)
	case 1:
		return showSessionDetails(client, args[0])
	default:
		return fmt.Errorf("too many arguments. Usage: chat-resume show [session-id]")
	}
}

func showSessions(client *api.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions, err := client.FetchSessionList(ctx, string(history.SortByDate), string(history.SortDesc), dateFrom, dateTo)
	if err != nil {
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}
	history.SortSessions(sessions, history.SortByDate, history.SortDesc)

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	now := time.Now()
	fmt.Println("Sessions:")
	fmt.Println("=========")
	for i, session := range sessions {
		fmt.Printf("%d. %s\n", i+1, session.SessionID)
		fmt.Printf("   Started: %s\n", render.RelativeTime(session.StartedAt, now))
		fmt.Printf("   Messages: %d\n", session.MessageCount)
		if session.Preview != nil && *session.Preview != "" {
			fmt.Printf("   Preview: %s\n", truncateString(*session.Preview, 80))
		}
		fmt.Println()
	}

	return nil
}

func showSessionDetails(client *api.Client, sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	details, err := client.FetchDetails(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch details: %w", err)
	}

	if details == nil || (len(details.Entities) == 0 && len(details.Messages) == 0) {
		fmt.Printf("No details found for session '%s'\n", sessionID)
		fmt.Println("\nThis might mean the session is empty or the ID is wrong.")
		return nil
	}

	fmt.Printf("Session '%s':\n", sessionID)
	fmt.Println("================================================")

	if len(details.Entities) > 0 {
		fmt.Println("\nEntities:")
		for _, entity := range details.Entities {
			fmt.Printf("  #%s\n", entity.Text)
		}
	}

	if len(details.Messages) > 0 {
		fmt.Println("\nRecent Messages:")
		messages := details.Messages
		if len(messages) > 5 {
			messages = messages[len(messages)-5:]
			fmt.Printf("(showing last 5 of %d messages)\n", len(details.Messages))
		}
		for i, msg := range messages {
			fmt.Printf("\n%d. [%s] %s\n", i+1, msg.Role, truncateString(msg.Text, 200))
		}
	}

	similar, err := client.FetchSimilar(ctx, sessionID, 5)
	if err == nil && len(similar) > 0 {
		fmt.Println("\nSimilar Sessions:")
		for i, s := range similar {
			line := s.SessionID
			if s.RelevanceScore != nil {
				line = fmt.Sprintf("%s [%.2f]", line, *s.RelevanceScore)
			}
			fmt.Printf("  %d. %s\n", i+1, line)
		}
	}

	return nil
}

func printSummaries(sessions []models.SessionSummary) {
	now := time.Now()
	for i, session := range sessions {
		fmt.Printf("%d. %s", i+1, session.SessionID)
		if session.RelevanceScore != nil {
			fmt.Printf(" [%.2f]", *session.RelevanceScore)
		}
		fmt.Println()
		fmt.Printf("   Started: %s\n", render.RelativeTime(session.StartedAt, now))
		if session.Preview != nil && *session.Preview != "" {
			fmt.Printf("   Preview: %s\n", truncateString(*session.Preview, 80))
		}
		fmt.Println()
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
