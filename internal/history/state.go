// Package history holds the session-history view state and the controller
// that mediates all mutations to it.
//
// Every mutation goes through a single applyPatch entry point that coalesces
// rapid changes into one render callback, so bursts of keystrokes or scroll
// events cost one repaint instead of one per event.
package history

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/webollama/chat-resume/internal/virtual"
	"github.com/webollama/chat-resume/pkg/models"
)

// Store is the data source for session history. *api.Client satisfies it;
// tests substitute fakes.
type Store interface {
	FetchSessionList(ctx context.Context, sortKey, sortDir, dateFrom, dateTo string) ([]models.SessionSummary, error)
	SearchSessions(ctx context.Context, query string, limit int) ([]models.SessionSummary, error)
	FetchDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	FetchSimilar(ctx context.Context, sessionID string, limit int) ([]models.SessionSummary, error)
	ResumeSession(ctx context.Context, sessionID string) (string, error)
	FetchStats(ctx context.Context) (*models.StatsSummary, error)
}

// ViewState is the single mutable structure behind the history view.
// SearchResults nil means "no active search, display Sessions"; a non-nil
// empty slice means "search ran and found nothing".
type ViewState struct {
	Sessions      []models.SessionSummary
	SearchResults []models.SessionSummary

	Query    string
	SortKey  SortKey
	SortDir  SortDir
	DateFrom string
	DateTo   string

	ExpandedSessionID string
	ActiveSessionID   string

	Cursor         int
	ScrollOffset   int
	ViewportHeight int

	Loading             bool
	InitialLoadComplete bool

	Stats   *models.StatsSummary
	Details map[string]*models.SessionDetails
	Similar map[string][]models.SessionSummary
}

// Snapshot is an immutable copy of the view state handed to the render sink.
type Snapshot struct {
	ViewState
}

// Visible returns the list currently on display: search results when a
// search is active, the authoritative session list otherwise.
func (s Snapshot) Visible() []models.SessionSummary {
	if s.SearchResults != nil {
		return s.SearchResults
	}
	return s.Sessions
}

// SearchActive reports whether search results are on display.
func (s Snapshot) SearchActive() bool {
	return s.SearchResults != nil
}

// CursorSessionID returns the session ID under the cursor, or "".
func (s Snapshot) CursorSessionID() string {
	visible := s.Visible()
	if s.Cursor < 0 || s.Cursor >= len(visible) {
		return ""
	}
	return visible[s.Cursor].SessionID
}

// Options configures a Controller.
type Options struct {
	// RenderDelay is the patch coalescing window (default: 16ms, one frame).
	RenderDelay time.Duration
	// FetchTimeout bounds each backend call (default: 15s).
	FetchTimeout time.Duration
	// SearchLimit is the search page size (default: 50).
	SearchLimit int
	// SimilarLimit is the similar-sessions page size (default: 5).
	SimilarLimit int
	// ItemHeight is the nominal rows per session card (default: 3).
	ItemHeight int
	// DateFrom and DateTo seed the inclusive ISO date filter bounds.
	DateFrom string
	DateTo   string
	// OnResume is called after a resume attempt completes.
	OnResume func(sessionID string, err error)
	// Logger defaults to the package-level charmbracelet logger.
	Logger *log.Logger
}

// Controller owns the ViewState and mediates all mutations. All exported
// methods are safe for concurrent use; fetches run on their own goroutines
// and feed results back through applyPatch.
type Controller struct {
	store  Store
	logger *log.Logger

	renderFn     func(Snapshot)
	renderDelay  time.Duration
	fetchTimeout time.Duration
	searchLimit  int
	similarLimit int
	itemHeight   int
	onResume     func(string, error)

	mu            sync.Mutex
	state         ViewState
	renderPending bool

	detailInFlight  atomic.Bool
	similarInFlight map[string]bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewController creates a controller over the given store. renderFn receives
// one coalesced snapshot per render pass; it is invoked from a timer
// goroutine and must not call back into the controller synchronously.
func NewController(store Store, renderFn func(Snapshot), opts Options) *Controller {
	if opts.RenderDelay <= 0 {
		opts.RenderDelay = 16 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 50
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = 5
	}
	if opts.ItemHeight <= 0 {
		opts.ItemHeight = 3
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Controller{
		store:           store,
		logger:          opts.Logger,
		renderFn:        renderFn,
		renderDelay:     opts.RenderDelay,
		fetchTimeout:    opts.FetchTimeout,
		searchLimit:     opts.SearchLimit,
		similarLimit:    opts.SimilarLimit,
		itemHeight:      opts.ItemHeight,
		onResume:        opts.OnResume,
		similarInFlight: make(map[string]bool),
		state: ViewState{
			SortKey:  SortByDate,
			SortDir:  SortDesc,
			DateFrom: opts.DateFrom,
			DateTo:   opts.DateTo,
			Details:  make(map[string]*models.SessionDetails),
			Similar:  make(map[string][]models.SessionSummary),
		},
		done: make(chan struct{}),
	}
}

// Close stops the auto-refresh loop. In-flight fetches finish and apply
// their results; pending renders still fire.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Snapshot returns a copy of the current state outside the render cycle.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{ViewState: c.state}
	// Maps are mutated under the lock after publication; copy them so the
	// snapshot stays stable in the renderer's hands.
	snap.Details = make(map[string]*models.SessionDetails, len(c.state.Details))
	for id, d := range c.state.Details {
		snap.Details[id] = d
	}
	snap.Similar = make(map[string][]models.SessionSummary, len(c.state.Similar))
	for id, s := range c.state.Similar {
		snap.Similar[id] = s
	}
	return snap
}

// applyPatch applies one mutation and schedules a coalesced render. Patches
// are applied in call order; the render that eventually fires always sees
// the most recent merged state.
func (c *Controller) applyPatch(mutate func(*ViewState)) {
	c.mu.Lock()
	mutate(&c.state)
	if !c.renderPending {
		c.renderPending = true
		time.AfterFunc(c.renderDelay, c.fireRender)
	}
	c.mu.Unlock()
}

func (c *Controller) fireRender() {
	c.mu.Lock()
	c.renderPending = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.renderFn != nil {
		c.renderFn(snap)
	}
}

func (c *Controller) fetchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.fetchTimeout)
}

// SetQuery records the query text. It does not trigger a search; the search
// itself is an explicit action (enter key or submit).
func (c *Controller) SetQuery(query string) {
	c.applyPatch(func(st *ViewState) { st.Query = query })
}

// Search runs the current query against the backend. An empty or
// whitespace-only query means "no search" and falls back to a list reload.
func (c *Controller) Search() {
	c.mu.Lock()
	query := c.state.Query
	key, dir := c.state.SortKey, c.state.SortDir
	c.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		c.Reload()
		return
	}

	requestID := shortRequestID()
	c.logger.Debug("search dispatched", "request_id", requestID, "query", query)
	c.applyPatch(func(st *ViewState) { st.Loading = true })

	go func() {
		ctx, cancel := c.fetchContext()
		defer cancel()

		results, err := c.store.SearchSessions(ctx, query, c.searchLimit)
		if err != nil {
			c.logger.Warn("search failed", "request_id", requestID, "err", err)
			results = nil
		}
		if results == nil {
			results = []models.SessionSummary{}
		}
		SortSessions(results, key, dir)

		c.applyPatch(func(st *ViewState) {
			st.SearchResults = results
			st.Loading = false
			c.clampScrollLocked(st)
		})
	}()
}

// ClearSearch drops the query and search results and reloads the list.
func (c *Controller) ClearSearch() {
	c.applyPatch(func(st *ViewState) {
		st.Query = ""
		st.SearchResults = nil
		st.Cursor = 0
		st.ScrollOffset = 0
	})
	c.Reload()
}

// SetSort changes the sort spec and reloads immediately. Sort changes are
// discrete UI actions, not keystroke streams, so no debounce is needed
// beyond the render coalescing.
func (c *Controller) SetSort(key SortKey, dir SortDir) {
	c.applyPatch(func(st *ViewState) {
		st.SortKey = key
		st.SortDir = dir
	})
	c.Reload()
}

// SetDateRange sets the inclusive ISO date filter bounds (either may be
// empty) and reloads.
func (c *Controller) SetDateRange(from, to string) {
	c.applyPatch(func(st *ViewState) {
		st.DateFrom = from
		st.DateTo = to
	})
	c.Reload()
}

// Reload fetches the session list with the current sort and filters. The
// fetched page is re-sorted client-side so ordering stays consistent even
// when the backend ignores the sort parameters. Failures settle to an empty
// list; loading never sticks.
func (c *Controller) Reload() {
	c.mu.Lock()
	key, dir := c.state.SortKey, c.state.SortDir
	from, to := c.state.DateFrom, c.state.DateTo
	c.mu.Unlock()

	requestID := shortRequestID()
	c.logger.Debug("list fetch dispatched", "request_id", requestID, "sort", key, "dir", dir)
	c.applyPatch(func(st *ViewState) { st.Loading = true })

	go func() {
		ctx, cancel := c.fetchContext()
		defer cancel()

		sessions, err := c.store.FetchSessionList(ctx, string(key), string(dir), from, to)
		if err != nil {
			c.logger.Warn("list fetch failed", "request_id", requestID, "err", err)
			sessions = nil
		}
		if sessions == nil {
			sessions = []models.SessionSummary{}
		}
		SortSessions(sessions, key, dir)

		c.applyPatch(func(st *ViewState) {
			st.Sessions = sessions
			st.SearchResults = nil
			st.Loading = false
			st.InitialLoadComplete = true
			c.clampScrollLocked(st)
		})
	}()
}

// ToggleExpand expands the session, or collapses it when it is already
// expanded. Details are fetched at most once per session and cached for the
// lifetime of the controller. Only one detail fetch may be in flight
// system-wide; a second request while one is pending is dropped, not
// queued.
func (c *Controller) ToggleExpand(sessionID string) {
	if sessionID == "" {
		return
	}

	c.mu.Lock()
	if c.state.ExpandedSessionID == sessionID {
		c.mu.Unlock()
		c.applyPatch(func(st *ViewState) { st.ExpandedSessionID = "" })
		return
	}
	_, cached := c.state.Details[sessionID]
	c.mu.Unlock()

	if cached {
		c.applyPatch(func(st *ViewState) { st.ExpandedSessionID = sessionID })
		return
	}

	if !c.detailInFlight.CompareAndSwap(false, true) {
		c.logger.Debug("detail fetch already in flight, dropping", "session", sessionID)
		return
	}

	go func() {
		defer c.detailInFlight.Store(false)

		ctx, cancel := c.fetchContext()
		defer cancel()

		details, err := c.store.FetchDetails(ctx, sessionID)
		if err != nil {
			c.logger.Warn("detail fetch failed", "session", sessionID, "err", err)
			return
		}
		c.applyPatch(func(st *ViewState) {
			st.Details[sessionID] = details
			st.ExpandedSessionID = sessionID
		})
	}()
}

// LoadSimilar fetches similar sessions for the given session once;
// subsequent calls are no-ops after the result lands. Fire-and-forget: a
// failure is logged and the user may re-invoke.
func (c *Controller) LoadSimilar(sessionID string) {
	if sessionID == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.state.Similar[sessionID]; ok {
		c.mu.Unlock()
		return
	}
	if c.similarInFlight[sessionID] {
		c.mu.Unlock()
		return
	}
	c.similarInFlight[sessionID] = true
	c.mu.Unlock()

	go func() {
		ctx, cancel := c.fetchContext()
		defer cancel()

		similar, err := c.store.FetchSimilar(ctx, sessionID, c.similarLimit)

		c.mu.Lock()
		delete(c.similarInFlight, sessionID)
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("similar fetch failed", "session", sessionID, "err", err)
			return
		}
		if similar == nil {
			similar = []models.SessionSummary{}
		}
		c.applyPatch(func(st *ViewState) { st.Similar[sessionID] = similar })
	}()
}

// Resume asks the backend to make the session active. The outcome is
// reported through the OnResume callback.
func (c *Controller) Resume(sessionID string) {
	if sessionID == "" {
		return
	}

	go func() {
		ctx, cancel := c.fetchContext()
		defer cancel()

		resumedID, err := c.store.ResumeSession(ctx, sessionID)
		if err != nil {
			c.logger.Warn("resume failed", "session", sessionID, "err", err)
		} else {
			c.applyPatch(func(st *ViewState) { st.ActiveSessionID = resumedID })
		}
		if c.onResume != nil {
			c.onResume(sessionID, err)
		}
	}()
}

// RefreshStats fetches the aggregate counts for the header line.
func (c *Controller) RefreshStats() {
	go func() {
		ctx, cancel := c.fetchContext()
		defer cancel()

		stats, err := c.store.FetchStats(ctx)
		if err != nil {
			c.logger.Warn("stats fetch failed", "err", err)
			return
		}
		c.applyPatch(func(st *ViewState) { st.Stats = stats })
	}()
}

// StartAutoRefresh re-runs the list fetch on a fixed interval until Close.
func (c *Controller) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Reload()
				c.RefreshStats()
			case <-c.done:
				return
			}
		}
	}()
}

// SetViewport records the list viewport height in rows.
func (c *Controller) SetViewport(rows int) {
	if rows < 0 {
		rows = 0
	}
	c.applyPatch(func(st *ViewState) {
		st.ViewportHeight = rows
		c.clampScrollLocked(st)
	})
}

// ScrollBy scrolls the list by delta rows, clamped to the list extent.
func (c *Controller) ScrollBy(delta int) {
	c.applyPatch(func(st *ViewState) {
		st.ScrollOffset += delta
		c.clampScrollLocked(st)
	})
}

// CursorDown moves the selection down one session, scrolling as needed.
func (c *Controller) CursorDown() {
	c.moveCursor(1)
}

// CursorUp moves the selection up one session, scrolling as needed.
func (c *Controller) CursorUp() {
	c.moveCursor(-1)
}

func (c *Controller) moveCursor(delta int) {
	c.applyPatch(func(st *ViewState) {
		visible := Snapshot{ViewState: *st}.Visible()
		st.Cursor += delta
		if st.Cursor < 0 {
			st.Cursor = 0
		}
		if st.Cursor >= len(visible) {
			st.Cursor = len(visible) - 1
		}
		if st.Cursor < 0 {
			st.Cursor = 0
		}
		c.ensureCursorVisibleLocked(st)
	})
}

// ensureCursorVisibleLocked nudges the scroll offset so the selected card is
// fully inside the viewport.
func (c *Controller) ensureCursorVisibleLocked(st *ViewState) {
	top := st.Cursor * c.itemHeight
	bottom := top + c.itemHeight
	if top < st.ScrollOffset {
		st.ScrollOffset = top
	}
	if st.ViewportHeight > 0 && bottom > st.ScrollOffset+st.ViewportHeight {
		st.ScrollOffset = bottom - st.ViewportHeight
	}
	c.clampScrollLocked(st)
}

func (c *Controller) clampScrollLocked(st *ViewState) {
	count := len(Snapshot{ViewState: *st}.Visible())
	max := virtual.MaxScroll(count, c.itemHeight, st.ViewportHeight)
	if st.ScrollOffset > max {
		st.ScrollOffset = max
	}
	if st.ScrollOffset < 0 {
		st.ScrollOffset = 0
	}
	if st.Cursor >= count && count > 0 {
		st.Cursor = count - 1
	}
	if count == 0 {
		st.Cursor = 0
	}
}

// ItemHeight returns the nominal rows per session card.
func (c *Controller) ItemHeight() int {
	return c.itemHeight
}

func shortRequestID() string {
	return uuid.NewString()[:8]
}
