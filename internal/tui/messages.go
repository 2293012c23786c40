package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/webollama/chat-resume/internal/history"
)

// Message types delivered into the bubbletea loop.
type (
	// StateMsg carries a coalesced snapshot from the history controller.
	// One StateMsg arrives per render pass regardless of how many patches
	// were applied inside the coalescing window.
	StateMsg struct {
		Snapshot history.Snapshot
	}

	// ResumedMsg reports the outcome of a resume request.
	ResumedMsg struct {
		SessionID string
		Err       error
	}

	// TickMsg drives the spinner animation.
	TickMsg time.Time
)

// tickCmd schedules the next spinner frame.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
