package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webollama/chat-resume/pkg/models"
)

func strPtr(s string) *string { return &s }

func ids(sessions []models.SessionSummary) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.SessionID
	}
	return out
}

func TestSortByEmbeddedEpoch(t *testing.T) {
	// IDs carry epoch millis; no other timestamps present. The embedded
	// epoch must win over the "now" fallback.
	sessions := []models.SessionSummary{
		{SessionID: "sess_200"},
		{SessionID: "sess_100"},
	}

	SortSessions(sessions, SortByDate, SortAsc)
	assert.Equal(t, []string{"sess_100", "sess_200"}, ids(sessions))

	SortSessions(sessions, SortByDate, SortDesc)
	assert.Equal(t, []string{"sess_200", "sess_100"}, ids(sessions))
}

func TestSortByStartedAtFallback(t *testing.T) {
	sessions := []models.SessionSummary{
		{SessionID: "b", StartedAt: strPtr("2024-01-02T00:00:00Z")},
		{SessionID: "a", StartedAt: strPtr("2024-01-01T00:00:00Z")},
	}

	SortSessions(sessions, SortByDate, SortAsc)
	assert.Equal(t, []string{"a", "b"}, ids(sessions))
}

func TestSortByCreatedAtFallback(t *testing.T) {
	sessions := []models.SessionSummary{
		{SessionID: "b", CreatedAt: strPtr("2024-03-02T00:00:00Z")},
		{SessionID: "a", CreatedAt: strPtr("2024-03-01T00:00:00Z")},
	}

	SortSessions(sessions, SortByDate, SortAsc)
	assert.Equal(t, []string{"a", "b"}, ids(sessions))
}

func TestSortUnparseableSortsLast(t *testing.T) {
	// Unparseable timestamps key on "now", which is larger than any real
	// historic timestamp.
	sessions := []models.SessionSummary{
		{SessionID: "old", StartedAt: strPtr("2020-01-01T00:00:00Z")},
		{SessionID: "junk", StartedAt: strPtr("not-a-timestamp")},
	}

	SortSessions(sessions, SortByDate, SortAsc)
	assert.Equal(t, []string{"old", "junk"}, ids(sessions),
		"unparseable entries key on now and land at the end ascending")
}

func TestSortStability(t *testing.T) {
	// Five sessions, all with the same timestamp: two consecutive sorts
	// must return the identical order.
	ts := strPtr("2024-06-01T12:00:00Z")
	sessions := []models.SessionSummary{
		{SessionID: "e1", StartedAt: ts},
		{SessionID: "e2", StartedAt: ts},
		{SessionID: "e3", StartedAt: ts},
		{SessionID: "e4", StartedAt: ts},
		{SessionID: "e5", StartedAt: ts},
	}

	SortSessions(sessions, SortByDate, SortDesc)
	first := ids(sessions)
	SortSessions(sessions, SortByDate, SortDesc)
	assert.Equal(t, first, ids(sessions))
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, first,
		"equal keys preserve input order")
}

func TestSortByMessageCount(t *testing.T) {
	sessions := []models.SessionSummary{
		{SessionID: "big", MessageCount: 50},
		{SessionID: "none"},
		{SessionID: "small", MessageCount: 3},
	}

	SortSessions(sessions, SortByMessageCount, SortAsc)
	assert.Equal(t, []string{"none", "small", "big"}, ids(sessions),
		"missing count sorts as zero")

	SortSessions(sessions, SortByMessageCount, SortDesc)
	assert.Equal(t, []string{"big", "small", "none"}, ids(sessions))
}

func TestDateKeyPreference(t *testing.T) {
	now := time.Now()

	// Embedded epoch beats started_at.
	withBoth := models.SessionSummary{
		SessionID: "sess_1700000000000",
		StartedAt: strPtr("2099-01-01T00:00:00Z"),
	}
	require.Equal(t, int64(1700000000000), dateKey(withBoth, now))

	// started_at beats created_at.
	started, _ := time.Parse(time.RFC3339, "2024-01-05T00:00:00Z")
	withStarted := models.SessionSummary{
		SessionID: "custom-id",
		StartedAt: strPtr("2024-01-05T00:00:00Z"),
		CreatedAt: strPtr("2024-01-01T00:00:00Z"),
	}
	require.Equal(t, started.UnixMilli(), dateKey(withStarted, now))

	// Nothing parseable falls back to now.
	bare := models.SessionSummary{SessionID: "custom-id"}
	require.Equal(t, now.UnixMilli(), dateKey(bare, now))
}
