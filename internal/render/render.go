// Package render turns a history snapshot into styled terminal output.
// Rendering cost is bounded by the visible slice: only the cards inside the
// virtualization range are assembled, regardless of list size.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/webollama/chat-resume/internal/history"
	"github.com/webollama/chat-resume/internal/virtual"
	"github.com/webollama/chat-resume/pkg/models"
)

const (
	messageLimit    = 5   // expanded card shows the last N messages
	messageTruncate = 150 // and truncates each to this many cells
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("63"))
	statsStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	previewStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	scoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	tagStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	roleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Bold(true)
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	emptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	searchTagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

// Renderer paints history snapshots. Stateless apart from layout constants,
// so one instance serves every render pass.
type Renderer struct {
	ItemHeight int
	Buffer     int
	Now        func() time.Time
}

// NewRenderer creates a renderer with the given nominal card height and
// virtualization buffer.
func NewRenderer(itemHeight, buffer int) *Renderer {
	if itemHeight <= 0 {
		itemHeight = 3
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Renderer{ItemHeight: itemHeight, Buffer: buffer, Now: time.Now}
}

// Header renders the title, stats and filter lines.
func (r *Renderer) Header(snap history.Snapshot, width int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" Session History "))
	b.WriteString("\n")

	visible := snap.Visible()
	stats := fmt.Sprintf("%d shown", len(visible))
	if snap.Stats != nil {
		stats = fmt.Sprintf("%d shown • %d total • %d active",
			len(visible), snap.Stats.TotalSessions, snap.Stats.ActiveSessions)
	}
	if snap.Loading {
		stats += " • loading…"
	}
	b.WriteString(statsStyle.Render(stats))

	if snap.SearchActive() {
		b.WriteString("  ")
		b.WriteString(searchTagStyle.Render(fmt.Sprintf("search: %q", snap.Query)))
	}
	if snap.DateFrom != "" || snap.DateTo != "" {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("dates: %s..%s", orAny(snap.DateFrom), orAny(snap.DateTo))))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("sorted by %s %s", snap.SortKey, snap.SortDir)))

	return b.String()
}

// List renders only the visible slice of session cards, positioned by the
// virtualization range.
func (r *Renderer) List(snap history.Snapshot, width int) string {
	visible := snap.Visible()
	if len(visible) == 0 {
		if snap.SearchActive() {
			return emptyStyle.Render("No sessions match the search")
		}
		if !snap.InitialLoadComplete {
			return emptyStyle.Render("Loading sessions…")
		}
		return emptyStyle.Render("No sessions")
	}

	rng := virtual.VisibleRange(len(visible), r.ItemHeight, snap.ScrollOffset, snap.ViewportHeight, r.Buffer)

	var b strings.Builder
	for i := rng.Start; i < rng.End; i++ {
		b.WriteString(r.card(snap, visible[i], i, width))
		if i < rng.End-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Window renders the list clipped to exactly the viewport: the buffered
// slice is assembled, the rows above the scroll offset are cut, and the
// result is padded or trimmed to ViewportHeight rows.
func (r *Renderer) Window(snap history.Snapshot, width int) string {
	content := r.List(snap, width)
	lines := strings.Split(content, "\n")

	visible := snap.Visible()
	if len(visible) > 0 {
		rng := virtual.VisibleRange(len(visible), r.ItemHeight, snap.ScrollOffset, snap.ViewportHeight, r.Buffer)
		skip := snap.ScrollOffset - virtual.Offset(rng, r.ItemHeight)
		if skip > 0 {
			if skip >= len(lines) {
				lines = nil
			} else {
				lines = lines[skip:]
			}
		}
	}

	if snap.ViewportHeight > 0 {
		if len(lines) > snap.ViewportHeight {
			lines = lines[:snap.ViewportHeight]
		}
		for len(lines) < snap.ViewportHeight {
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

// ScrollStatus renders the scrollbar-proportion line for the footer.
func (r *Renderer) ScrollStatus(snap history.Snapshot) string {
	visible := snap.Visible()
	total := virtual.TotalHeight(len(visible), r.ItemHeight)
	if total <= snap.ViewportHeight || total == 0 {
		return dimStyle.Render(fmt.Sprintf("%d sessions", len(visible)))
	}
	pct := snap.ScrollOffset * 100 / virtual.MaxScroll(len(visible), r.ItemHeight, snap.ViewportHeight)
	return dimStyle.Render(fmt.Sprintf("%d sessions • %d%%", len(visible), pct))
}

// card renders one session. A collapsed card takes ItemHeight rows; an
// expanded card runs taller, which the fixed-height scroll math tolerates.
func (r *Renderer) card(snap history.Snapshot, s models.SessionSummary, index, width int) string {
	selected := index == snap.Cursor
	expanded := snap.ExpandedSessionID == s.SessionID
	active := snap.ActiveSessionID == s.SessionID

	marker := "  "
	if selected {
		marker = cursorStyle.Render("> ")
	}

	head := timeStyle.Render(RelativeTime(firstTimestamp(s), r.Now()))
	head += dimStyle.Render(fmt.Sprintf(" • %d messages", s.MessageCount))
	if s.RelevanceScore != nil {
		head += " " + scoreStyle.Render(fmt.Sprintf("[%.2f]", *s.RelevanceScore))
	}
	if active {
		head += " " + activeStyle.Render("● active")
	} else if selected {
		head += dimStyle.Render("  enter: resume • tab: details")
	}

	preview := ""
	if s.Preview != nil {
		preview = *s.Preview
	}
	if preview == "" {
		preview = s.SessionID
	}
	previewWidth := width - 4
	if previewWidth < 10 {
		previewWidth = 10
	}
	preview = runewidth.Truncate(strings.ReplaceAll(preview, "\n", " "), previewWidth, "…")

	var b strings.Builder
	b.WriteString(marker + head + "\n")
	b.WriteString("  " + previewStyle.Render(preview) + "\n")

	if expanded {
		b.WriteString(r.expandedBody(snap, s.SessionID, width))
	}
	return b.String()
}

func (r *Renderer) expandedBody(snap history.Snapshot, sessionID string, width int) string {
	var b strings.Builder

	details, ok := snap.Details[sessionID]
	if !ok {
		b.WriteString("  " + emptyStyle.Render("loading details…") + "\n")
		return b.String()
	}

	if len(details.Entities) > 0 {
		tags := make([]string, 0, len(details.Entities))
		for _, e := range details.Entities {
			tags = append(tags, tagStyle.Render("#"+e.Text))
		}
		b.WriteString("  " + strings.Join(tags, " ") + "\n")
	}

	messages := details.Messages
	if len(messages) > messageLimit {
		messages = messages[len(messages)-messageLimit:]
	}
	for _, m := range messages {
		text := runewidth.Truncate(strings.ReplaceAll(m.Text, "\n", " "), messageTruncate, "…")
		b.WriteString("  " + roleStyle.Render(m.Role+": ") + timeStyle.Render(text) + "\n")
	}
	if len(details.Messages) == 0 {
		b.WriteString("  " + emptyStyle.Render("no messages") + "\n")
	}

	if similar, ok := snap.Similar[sessionID]; ok {
		b.WriteString("  " + sectionStyle.Render("Similar sessions") + "\n")
		if len(similar) == 0 {
			b.WriteString("  " + emptyStyle.Render("none found") + "\n")
		}
		for _, sim := range similar {
			line := "  · " + sim.SessionID
			if sim.RelevanceScore != nil {
				line += " " + scoreStyle.Render(fmt.Sprintf("[%.2f]", *sim.RelevanceScore))
			}
			b.WriteString(dimStyle.Render(line) + "\n")
		}
	} else {
		b.WriteString("  " + dimStyle.Render("m: load similar sessions") + "\n")
	}

	return b.String()
}

// firstTimestamp picks the timestamp shown on a card: started_at, falling
// back to created_at.
func firstTimestamp(s models.SessionSummary) *string {
	if s.StartedAt != nil && *s.StartedAt != "" {
		return s.StartedAt
	}
	return s.CreatedAt
}

// RelativeTime formats an ISO-8601 timestamp relative to now: "Nm ago"
// under an hour, "Nh ago" under a day, "Nd ago" under a week, an absolute
// date beyond that, and "Unknown" when the timestamp is missing or does not
// parse.
func RelativeTime(ts *string, now time.Time) string {
	if ts == nil || *ts == "" {
		return "Unknown"
	}
	t, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return "Unknown"
	}

	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
