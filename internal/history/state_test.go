package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webollama/chat-resume/pkg/models"
)

// fakeStore counts calls and serves canned data so tests can intercept the
// fetch paths.
type fakeStore struct {
	mu sync.Mutex

	listCalls    int
	searchCalls  int
	detailCalls  map[string]int
	similarCalls int
	resumeCalls  int
	statsCalls   int

	sessions      []models.SessionSummary
	searchResults []models.SessionSummary
	details       *models.SessionDetails
	similar       []models.SessionSummary

	listErr   error
	detailErr error

	detailGate chan struct{} // when set, FetchDetails blocks until closed
}

func newFakeStore() *fakeStore {
	return &fakeStore{detailCalls: make(map[string]int)}
}

func (f *fakeStore) FetchSessionList(ctx context.Context, sortKey, sortDir, dateFrom, dateTo string) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.SessionSummary(nil), f.sessions...), nil
}

func (f *fakeStore) SearchSessions(ctx context.Context, query string, limit int) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return append([]models.SessionSummary(nil), f.searchResults...), nil
}

func (f *fakeStore) FetchDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	f.mu.Lock()
	f.detailCalls[sessionID]++
	gate := f.detailGate
	err := f.detailErr
	details := f.details
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if details == nil {
		return &models.SessionDetails{}, nil
	}
	return details, nil
}

func (f *fakeStore) FetchSimilar(ctx context.Context, sessionID string, limit int) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similarCalls++
	return append([]models.SessionSummary(nil), f.similar...), nil
}

func (f *fakeStore) ResumeSession(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	return sessionID, nil
}

func (f *fakeStore) FetchStats(ctx context.Context) (*models.StatsSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return &models.StatsSummary{TotalSessions: 2}, nil
}

func (f *fakeStore) counts() (list, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.searchCalls
}

// newTestController builds a controller with a short coalescing window and a
// render counter.
func newTestController(t *testing.T, store Store, opts Options) (*Controller, *atomic.Int64) {
	t.Helper()
	var renders atomic.Int64
	if opts.RenderDelay == 0 {
		opts.RenderDelay = 10 * time.Millisecond
	}
	c := NewController(store, func(Snapshot) { renders.Add(1) }, opts)
	t.Cleanup(c.Close)
	return c, &renders
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPatchCoalescing(t *testing.T) {
	c, renders := newTestController(t, newFakeStore(), Options{RenderDelay: 30 * time.Millisecond})

	// Three patches inside the window produce exactly one render carrying
	// the union of all three.
	c.SetQuery("a")
	c.SetQuery("ab")
	c.SetViewport(24)

	waitFor(t, func() bool { return renders.Load() == 1 })
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, renders.Load(), "burst must collapse into one render")

	snap := c.Snapshot()
	assert.Equal(t, "ab", snap.Query)
	assert.Equal(t, 24, snap.ViewportHeight)
}

func TestSearchEmptyQueryFallsBackToList(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestController(t, store, Options{})

	c.SetQuery("   ")
	c.Search()

	waitFor(t, func() bool {
		list, search := store.counts()
		return list == 1 && search == 0
	})

	waitFor(t, func() bool { return c.Snapshot().InitialLoadComplete })
	snap := c.Snapshot()
	assert.Nil(t, snap.SearchResults, "no search results for the fallback path")
	assert.False(t, snap.Loading)
}

func TestSearchPopulatesOnlySearchResults(t *testing.T) {
	store := newFakeStore()
	store.searchResults = []models.SessionSummary{{SessionID: "sess_5"}}
	c, _ := newTestController(t, store, Options{})

	c.SetQuery("deploy")
	c.Search()

	waitFor(t, func() bool { return c.Snapshot().SearchActive() })
	snap := c.Snapshot()
	require.Len(t, snap.SearchResults, 1)
	assert.Empty(t, snap.Sessions, "search must not touch the session list")
	assert.False(t, snap.Loading)
}

func TestReloadClearsSearchResults(t *testing.T) {
	store := newFakeStore()
	store.searchResults = []models.SessionSummary{{SessionID: "sess_5"}}
	store.sessions = []models.SessionSummary{{SessionID: "sess_1"}}
	c, _ := newTestController(t, store, Options{})

	c.SetQuery("x")
	c.Search()
	waitFor(t, func() bool { return c.Snapshot().SearchActive() })

	c.Reload()
	waitFor(t, func() bool { return !c.Snapshot().SearchActive() && c.Snapshot().InitialLoadComplete })
	snap := c.Snapshot()
	assert.Len(t, snap.Sessions, 1)
}

func TestReloadFailureSettlesEmpty(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("boom")
	c, _ := newTestController(t, store, Options{})

	c.Reload()

	waitFor(t, func() bool { return c.Snapshot().InitialLoadComplete })
	snap := c.Snapshot()
	assert.Empty(t, snap.Sessions)
	assert.False(t, snap.Loading, "loading must never stick after a failure")
}

func TestEndToEndSortScenario(t *testing.T) {
	store := newFakeStore()
	store.sessions = []models.SessionSummary{
		{SessionID: "sess_2", StartedAt: strPtr("2024-01-02T00:00:00Z"), MessageCount: 5},
		{SessionID: "sess_1", StartedAt: strPtr("2024-01-01T00:00:00Z"), MessageCount: 2},
	}
	c, _ := newTestController(t, store, Options{})

	c.Reload()
	waitFor(t, func() bool { return c.Snapshot().InitialLoadComplete })
	assert.Equal(t, []string{"sess_2", "sess_1"}, ids(c.Snapshot().Sessions))

	c.SetSort(SortByMessageCount, SortAsc)
	waitFor(t, func() bool {
		s := c.Snapshot().Sessions
		return len(s) == 2 && s[0].SessionID == "sess_1"
	})
	assert.Equal(t, []string{"sess_1", "sess_2"}, ids(c.Snapshot().Sessions))
}

func TestToggleExpandCollapsesSameSession(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestController(t, store, Options{})

	c.ToggleExpand("sess_a")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_a" })

	// Same session again: pure collapse, no refetch.
	c.ToggleExpand("sess_a")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "" })

	store.mu.Lock()
	calls := store.detailCalls["sess_a"]
	store.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestToggleExpandUsesCache(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestController(t, store, Options{})

	c.ToggleExpand("sess_a")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_a" })

	c.ToggleExpand("sess_b")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_b" })

	// Back to A: details are cached, no second network call for A.
	c.ToggleExpand("sess_a")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_a" })

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.detailCalls["sess_a"])
	assert.Equal(t, 1, store.detailCalls["sess_b"])
}

func TestDetailFetchGuardDropsSecondRequest(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.detailGate = gate
	c, _ := newTestController(t, store, Options{})

	c.ToggleExpand("sess_a")
	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.detailCalls["sess_a"] == 1
	})

	// Second expand while the first is in flight is dropped, not queued.
	c.ToggleExpand("sess_b")
	time.Sleep(30 * time.Millisecond)
	store.mu.Lock()
	bCalls := store.detailCalls["sess_b"]
	store.mu.Unlock()
	assert.Equal(t, 0, bCalls)

	close(gate)
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_a" })
}

func TestDetailFetchErrorDoesNotExpand(t *testing.T) {
	store := newFakeStore()
	store.detailErr = errors.New("boom")
	c, _ := newTestController(t, store, Options{})

	c.ToggleExpand("sess_a")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "", c.Snapshot().ExpandedSessionID)

	// The guard must be released so a later expand can retry.
	store.mu.Lock()
	store.detailErr = nil
	store.mu.Unlock()
	c.ToggleExpand("sess_a")
	waitFor(t, func() bool { return c.Snapshot().ExpandedSessionID == "sess_a" })
}

func TestLoadSimilarCachedForever(t *testing.T) {
	store := newFakeStore()
	store.similar = []models.SessionSummary{{SessionID: "sess_9"}}
	c, _ := newTestController(t, store, Options{})

	c.LoadSimilar("sess_1")
	waitFor(t, func() bool {
		_, ok := c.Snapshot().Similar["sess_1"]
		return ok
	})

	c.LoadSimilar("sess_1")
	time.Sleep(30 * time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.similarCalls, "similar results are never refetched")
}

func TestResumeSetsActiveSession(t *testing.T) {
	store := newFakeStore()
	resumed := make(chan string, 1)
	c, _ := newTestController(t, store, Options{
		OnResume: func(id string, err error) { resumed <- id },
	})

	c.Resume("sess_3")
	select {
	case id := <-resumed:
		assert.Equal(t, "sess_3", id)
	case <-time.After(2 * time.Second):
		t.Fatal("resume callback never fired")
	}
	waitFor(t, func() bool { return c.Snapshot().ActiveSessionID == "sess_3" })
}

func TestCursorMovementScrollsViewport(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 20; i++ {
		store.sessions = append(store.sessions, models.SessionSummary{
			SessionID: "sess_" + string(rune('a'+i)),
		})
	}
	c, _ := newTestController(t, store, Options{ItemHeight: 3})

	c.SetViewport(9) // three cards visible
	c.Reload()
	waitFor(t, func() bool { return len(c.Snapshot().Sessions) == 20 })

	for i := 0; i < 5; i++ {
		c.CursorDown()
	}
	waitFor(t, func() bool { return c.Snapshot().Cursor == 5 })
	snap := c.Snapshot()
	assert.Equal(t, 9, snap.ScrollOffset,
		"cursor at item 5 (rows 15-18) forces scroll so it is visible")

	for i := 0; i < 10; i++ {
		c.CursorUp()
	}
	waitFor(t, func() bool { return c.Snapshot().Cursor == 0 })
	assert.Equal(t, 0, c.Snapshot().ScrollOffset)
}

func TestStatsRefresh(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestController(t, store, Options{})

	c.RefreshStats()
	waitFor(t, func() bool { return c.Snapshot().Stats != nil })
	assert.Equal(t, 2, c.Snapshot().Stats.TotalSessions)
}
