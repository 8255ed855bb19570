// Package collection owns the in-memory set of time entries for a session and
// derives filtered, sorted and paginated views from it.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tiliavir/timereg/internal/entrystore"
	"github.com/Tiliavir/timereg/internal/event"
	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 5

// ViewParams are the transient parameters of the session's derived view.
type ViewParams struct {
	Filter   Filter
	Sort     SortKey
	Page     int
	PageSize int
}

// Page is one rendered page of the derived view.
type Page struct {
	Entries    []model.TimeEntry
	Page       int
	PageSize   int
	TotalPages int
	// Matched counts the entries passing the filter, across all pages.
	Matched int
	Warning string
}

// Manager owns the canonical entry sequence. Views handed out are copies.
// Mutations are single-flight: one started while another is outstanding
// fails with a KindBusy error.
type Manager struct {
	store   entrystore.Store
	bus     *event.Bus
	variant model.FormVariant
	now     func() time.Time

	mu      sync.RWMutex
	entries []model.TimeEntry
	lastErr *Error
	view    ViewParams

	inflight atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus publishes changes to bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithVariant selects the required text field of drafts.
func WithVariant(v model.FormVariant) Option {
	return func(m *Manager) { m.variant = v }
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.view.PageSize = n
		}
	}
}

// New creates a Manager persisting through store.
func New(store entrystore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		variant: model.VariantDescription,
		now:     time.Now,
		entries: []model.TimeEntry{},
		view:    ViewParams{Page: 1, PageSize: DefaultPageSize},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the entry set with the backend's. On failure the set is left
// empty and the error is kept for display. The view returns to page 1 with
// no filter either way.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	entries, err := m.store.FetchAll(ctx)

	m.mu.Lock()
	m.view.Filter = Filter{}
	m.view.Page = 1
	if err != nil {
		ce := fromStore(err)
		m.entries = []model.TimeEntry{}
		m.lastErr = ce
		m.mu.Unlock()
		logger.Warn("loading entries failed", "kind", ce.Kind, "error", ce.Message)
		m.publish(event.Change{Type: event.LoadFailed, Error: ce.Message})
		return ce
	}
	m.entries = slices.Clone(entries)
	if m.entries == nil {
		m.entries = []model.TimeEntry{}
	}
	m.lastErr = nil
	n := len(m.entries)
	m.mu.Unlock()

	logger.Debug("entries loaded", "count", n)
	m.publish(event.Change{Type: event.EntriesLoaded, Count: n})
	return nil
}

// Validate checks a draft against the manager's form variant.
func (m *Manager) Validate(d model.Draft) []model.FieldError {
	return Validate(d, m.variant)
}

// Add validates the draft, enforces the weekly cap for the Sunday-aligned
// week of its date and persists it. Nothing changes locally unless the
// backend accepts the entry.
func (m *Manager) Add(ctx context.Context, d model.Draft) (model.TimeEntry, error) {
	if fields := m.Validate(d); len(fields) > 0 {
		return model.TimeEntry{}, m.fail(validationError(fields))
	}
	if err := m.begin(); err != nil {
		return model.TimeEntry{}, err
	}
	defer m.end()

	now := m.now()
	entry := model.TimeEntry{
		ID:          timecalc.GenerateID(now),
		Date:        d.Date,
		Project:     strings.TrimSpace(d.Project),
		Category:    strings.TrimSpace(d.Category),
		Description: strings.TrimSpace(d.Text(m.variant)),
		Hours:       *d.Hours,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if entry.Date == "" {
		entry.Date = timecalc.DateKey(now)
	}

	if err := m.checkCapacity(entry, 0); err != nil {
		return model.TimeEntry{}, m.fail(err)
	}

	created, err := m.store.Create(ctx, entry)
	if err != nil {
		return model.TimeEntry{}, m.fail(fromStore(err))
	}
	if created != nil {
		if created.ID == 0 {
			created.ID = entry.ID
		}
		entry = *created
	}

	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.lastErr = nil
	n := len(m.entries)
	m.mu.Unlock()

	logger.Info("entry added", "id", entry.ID, "date", entry.Date, "hours", entry.Hours)
	m.publish(event.Change{Type: event.EntryAdded, EntryID: entry.ID, Count: n})
	return entry, nil
}

// Update replaces the entry with the given id by the draft's content,
// keeping its creation time.
func (m *Manager) Update(ctx context.Context, id int64, d model.Draft) (model.TimeEntry, error) {
	if fields := m.Validate(d); len(fields) > 0 {
		return model.TimeEntry{}, m.fail(validationError(fields))
	}
	if err := m.begin(); err != nil {
		return model.TimeEntry{}, err
	}
	defer m.end()

	existing, ok := m.Get(id)
	if !ok {
		return model.TimeEntry{}, m.fail(&Error{Kind: KindNotFound, Message: fmt.Sprintf("entry %d not found", id)})
	}

	entry := existing
	if d.Date != "" {
		entry.Date = d.Date
	}
	entry.Project = strings.TrimSpace(d.Project)
	entry.Category = strings.TrimSpace(d.Category)
	entry.Description = strings.TrimSpace(d.Text(m.variant))
	entry.Hours = *d.Hours
	entry.UpdatedAt = m.now()

	if err := m.checkCapacity(entry, id); err != nil {
		return model.TimeEntry{}, m.fail(err)
	}

	updated, err := m.store.Update(ctx, entry)
	if err != nil {
		return model.TimeEntry{}, m.fail(fromStore(err))
	}
	if updated != nil {
		entry = *updated
		entry.ID = id
	}

	m.mu.Lock()
	if i := m.indexOf(id); i >= 0 {
		m.entries[i] = entry
	}
	m.lastErr = nil
	n := len(m.entries)
	m.mu.Unlock()

	logger.Info("entry updated", "id", id)
	m.publish(event.Change{Type: event.EntryUpdated, EntryID: id, Count: n})
	return entry, nil
}

// Remove deletes the entry through the backend and then drops it locally.
// An id missing from the local set is not an error.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if err := m.store.Remove(ctx, id); err != nil {
		return m.fail(fromStore(err))
	}

	m.mu.Lock()
	if i := m.indexOf(id); i >= 0 {
		m.entries = slices.Delete(m.entries, i, i+1)
	}
	m.lastErr = nil
	n := len(m.entries)
	m.mu.Unlock()

	logger.Info("entry removed", "id", id)
	m.publish(event.Change{Type: event.EntryRemoved, EntryID: id, Count: n})
	return nil
}

// checkCapacity rejects entry when it would push its Sunday-aligned week over
// WeeklyHourLimit. The entry with id exclude is left out of the existing total.
func (m *Manager) checkCapacity(entry model.TimeEntry, exclude int64) *Error {
	day, err := timecalc.ParseDate(entry.Date, m.now().Location())
	if err != nil {
		return validationError([]model.FieldError{{Field: "date", Message: "Date must be formatted as YYYY-MM-DD."}})
	}
	from, to := timecalc.SundayWeek(day)

	m.mu.RLock()
	existing := sumHours(m.entries, from, to, exclude)
	m.mu.RUnlock()

	if existing+entry.Hours > WeeklyHourLimit {
		return &Error{
			Kind: KindCapacity,
			Message: fmt.Sprintf("The week of %s already has %s hours; adding %s would exceed the %d-hour weekly limit.",
				timecalc.DateKey(from), formatHours(existing), formatHours(entry.Hours), WeeklyHourLimit),
		}
	}
	return nil
}

// Entries returns a copy of the entry set in insertion order.
func (m *Manager) Entries() []model.TimeEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}

// Get returns the entry with the given id.
func (m *Manager) Get(id int64) (model.TimeEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		return m.entries[i], true
	}
	return model.TimeEntry{}, false
}

// indexOf must be called with mu held.
func (m *Manager) indexOf(id int64) int {
	return slices.IndexFunc(m.entries, func(e model.TimeEntry) bool { return e.ID == id })
}

// Err returns the last failure kept for display, or nil.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastErr == nil {
		return nil
	}
	return m.lastErr
}

// SetFilter replaces the active filter and returns to page 1.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.Filter = f
	m.view.Page = 1
}

// SetSort changes the sort key of the view.
func (m *Manager) SetSort(key SortKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.Sort = key
}

// SetPage moves the view to page n (1-based).
func (m *Manager) SetPage(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.Page = max(n, 1)
}

// SetPageSize changes the page size and returns to page 1.
func (m *Manager) SetPageSize(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.PageSize = n
	m.view.Page = 1
}

// Params returns the current view parameters.
func (m *Manager) Params() ViewParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// View derives the current page: filter, then sort, then paginate. The
// weekly warning is computed over the whole filtered view.
func (m *Manager) View() Page {
	m.mu.RLock()
	params := m.view
	filtered := ApplyFilter(m.entries, params.Filter)
	m.mu.RUnlock()

	sorted := ApplySort(filtered, params.Sort)
	return Page{
		Entries:    Paginate(sorted, params.Page, params.PageSize),
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: PageCount(len(sorted), params.PageSize),
		Matched:    len(sorted),
		Warning:    WeeklyHoursMessage(sorted, m.now()),
	}
}

// Subscribe streams collection changes until ctx ends.
func (m *Manager) Subscribe(ctx context.Context) (<-chan event.Change, error) {
	if m.bus == nil {
		return nil, errors.New("collection has no event bus")
	}
	return m.bus.Subscribe(ctx)
}

func (m *Manager) begin() error {
	if !m.inflight.CompareAndSwap(false, true) {
		return &Error{Kind: KindBusy, Message: "another change is still in progress; try again when it completes"}
	}
	return nil
}

func (m *Manager) end() {
	m.inflight.Store(false)
}

func (m *Manager) fail(err *Error) error {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	logger.Debug("collection operation failed", "kind", err.Kind, "error", err.Message)
	return err
}

func (m *Manager) publish(c event.Change) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(c); err != nil {
		logger.Warn("publishing change failed", "type", c.Type, "error", err)
	}
}
