package history

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/webollama/chat-resume/pkg/models"
)

// SortKey selects the field sessions are ordered by.
type SortKey string

const (
	SortByDate         SortKey = "date"
	SortByMessageCount SortKey = "message_count"
)

// SortDir is the sort direction.
type SortDir string

const (
	SortDesc SortDir = "desc"
	SortAsc  SortDir = "asc"
)

// Session IDs of the form sess_<epoch-millis> carry their creation time.
var sessionIDEpoch = regexp.MustCompile(`^sess_(\d+)$`)

// dateKey derives a numeric sort key for a session. Preference order:
// epoch millis embedded in the session ID, then started_at, then
// created_at. Sessions with no parseable timestamp key on "now", which
// keeps them at the end under descending order instead of crashing the
// sort on malformed data.
func dateKey(s models.SessionSummary, now time.Time) int64 {
	if m := sessionIDEpoch.FindStringSubmatch(s.SessionID); m != nil {
		if millis, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return millis
		}
	}
	if millis, ok := parseTimestampMillis(s.StartedAt); ok {
		return millis
	}
	if millis, ok := parseTimestampMillis(s.CreatedAt); ok {
		return millis
	}
	return now.UnixMilli()
}

func parseTimestampMillis(ts *string) (int64, bool) {
	if ts == nil || *ts == "" {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// SortSessions stable-sorts sessions in place. Stability matters: equal
// keys keep their relative order across re-sorts, so rows do not jump
// around visually.
func SortSessions(sessions []models.SessionSummary, key SortKey, dir SortDir) {
	now := time.Now()

	var less func(a, b models.SessionSummary) bool
	switch key {
	case SortByMessageCount:
		less = func(a, b models.SessionSummary) bool {
			return a.MessageCount < b.MessageCount
		}
	default:
		keys := make(map[string]int64, len(sessions))
		for _, s := range sessions {
			keys[s.SessionID] = dateKey(s, now)
		}
		less = func(a, b models.SessionSummary) bool {
			return keys[a.SessionID] < keys[b.SessionID]
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if dir == SortAsc {
			return less(sessions[i], sessions[j])
		}
		return less(sessions[j], sessions[i])
	})
}
