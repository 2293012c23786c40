// Package tui hosts the session history view in a bubbletea program. All
// list state lives in the history controller; the model here only routes
// key events to controller actions and paints the snapshots the controller
// pushes back.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/webollama/chat-resume/internal/api"
	"github.com/webollama/chat-resume/internal/config"
	"github.com/webollama/chat-resume/internal/history"
	"github.com/webollama/chat-resume/internal/render"
)

// Rows reserved above and below the list region.
const (
	headerRows = 4
	footerRows = 2
)

type model struct {
	ctrl     *history.Controller
	renderer *render.Renderer

	snap      history.Snapshot
	input     textinput.Model
	searching bool
	spinner   *Spinner

	resumedID string
	resumeErr error

	width  int
	height int
	ready  bool
}

func newModel(ctrl *history.Controller, renderer *render.Renderer) model {
	input := textinput.New()
	input.Placeholder = "search sessions…"
	input.CharLimit = 200
	return model{
		ctrl:     ctrl,
		renderer: renderer,
		input:    input,
		spinner:  NewSpinner(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tickCmd(), func() tea.Msg {
		m.ctrl.Reload()
		m.ctrl.RefreshStats()
		return nil
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		rows := msg.Height - headerRows - footerRows
		if rows < 1 {
			rows = 1
		}
		m.ctrl.SetViewport(rows)
		return m, nil

	case StateMsg:
		m.snap = msg.Snapshot
		return m, nil

	case ResumedMsg:
		if msg.Err != nil {
			m.resumeErr = msg.Err
			return m, nil
		}
		m.resumedID = msg.SessionID
		return m, tea.Quit

	case TickMsg:
		m.spinner.Next()
		return m, tickCmd()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearchInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m model) updateSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.ctrl.SetQuery(m.input.Value())
		m.ctrl.Search()
		m.searching = false
		m.input.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.input.Blur()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "/":
		m.searching = true
		m.input.SetValue(m.snap.Query)
		m.input.Focus()
		return m, textinput.Blink

	case "up", "k":
		m.ctrl.CursorUp()

	case "down", "j":
		m.ctrl.CursorDown()

	case "pgup":
		m.ctrl.ScrollBy(-m.snap.ViewportHeight)

	case "pgdown":
		m.ctrl.ScrollBy(m.snap.ViewportHeight)

	case "tab", " ":
		m.ctrl.ToggleExpand(m.snap.CursorSessionID())

	case "m":
		if id := m.snap.CursorSessionID(); id != "" {
			m.ctrl.LoadSimilar(id)
		}

	case "enter":
		if id := m.snap.CursorSessionID(); id != "" && id != m.snap.ActiveSessionID {
			m.ctrl.Resume(id)
		}

	case "s":
		if m.snap.SortKey == history.SortByDate {
			m.ctrl.SetSort(history.SortByMessageCount, m.snap.SortDir)
		} else {
			m.ctrl.SetSort(history.SortByDate, m.snap.SortDir)
		}

	case "o":
		if m.snap.SortDir == history.SortDesc {
			m.ctrl.SetSort(m.snap.SortKey, history.SortAsc)
		} else {
			m.ctrl.SetSort(m.snap.SortKey, history.SortDesc)
		}

	case "r":
		m.ctrl.Reload()
		m.ctrl.RefreshStats()

	case "esc":
		if m.snap.ExpandedSessionID != "" {
			m.ctrl.ToggleExpand(m.snap.ExpandedSessionID)
		} else if m.snap.SearchActive() {
			m.ctrl.ClearSearch()
		}
	}

	return m, nil
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing…"
	}

	header := m.renderer.Header(m.snap, m.width)
	if m.snap.Loading {
		header += "  " + m.spinner.LoadingLine("")
	}
	if m.searching {
		header += "\n" + m.input.View()
	} else {
		header += "\n"
	}

	list := m.renderer.Window(m.snap, m.width)

	footer := m.renderer.ScrollStatus(m.snap) + "\n" + m.helpLine()

	return fmt.Sprintf("%s\n%s\n%s", header, list, footer)
}

func (m model) helpLine() string {
	help := "↑/↓: navigate • tab: details • enter: resume • /: search • s/o: sort • r: refresh • q: quit"
	if m.resumeErr != nil {
		help = fmt.Sprintf("resume failed: %v", m.resumeErr)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	return style.Render(help)
}

// Result reports what the user picked before the program exited.
type Result struct {
	// ResumedSessionID is non-empty when a session was resumed.
	ResumedSessionID string
}

// Run wires the controller, renderer and bubbletea program together and
// blocks until the user quits or resumes a session.
func Run(cfg *config.Config, client *api.Client, logger *log.Logger, dateFrom, dateTo string) (*Result, error) {
	renderer := render.NewRenderer(cfg.UI.ItemHeight, cfg.UI.BufferItems)

	var p *tea.Program
	ctrl := history.NewController(client,
		func(snap history.Snapshot) {
			if p != nil {
				p.Send(StateMsg{Snapshot: snap})
			}
		},
		history.Options{
			FetchTimeout: cfg.Timeout(),
			ItemHeight:   cfg.UI.ItemHeight,
			DateFrom:     dateFrom,
			DateTo:       dateTo,
			Logger:       logger,
			OnResume: func(sessionID string, err error) {
				if p != nil {
					p.Send(ResumedMsg{SessionID: sessionID, Err: err})
				}
			},
		})
	defer ctrl.Close()

	ctrl.StartAutoRefresh(cfg.RefreshInterval())

	p = tea.NewProgram(newModel(ctrl, renderer), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	m := finalModel.(model)
	result := &Result{ResumedSessionID: m.resumedID}
	if m.resumedID != "" {
		logger.Info("session resumed", "session", m.resumedID)
	}
	return result, nil
}
