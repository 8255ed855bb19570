package collection_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/entrystore"
	"github.com/Tiliavir/timereg/internal/event"
	"github.com/Tiliavir/timereg/internal/model"
)

// fakeStore is an in-memory entrystore.Store with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	entries   []model.TimeEntry
	fetchErr  error
	createErr error
	removeErr error
	noEcho    bool
	started   chan struct{}
	block     chan struct{}

	creates int
	removes []int64
}

func (s *fakeStore) FetchAll(ctx context.Context) ([]model.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]model.TimeEntry(nil), s.entries...), nil
}

func (s *fakeStore) Create(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.entries = append(s.entries, e)
	if s.noEcho {
		return nil, nil
	}
	return &e, nil
}

func (s *fakeStore) Update(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == e.ID {
			s.entries[i] = e
		}
	}
	return &e, nil
}

func (s *fakeStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, id)
	return s.removeErr
}

var fixedNow = time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC) // Friday

func newManager(store entrystore.Store, opts ...collection.Option) *collection.Manager {
	opts = append([]collection.Option{collection.WithClock(func() time.Time { return fixedNow })}, opts...)
	return collection.New(store, opts...)
}

func hours(h float64) *float64 { return &h }

func TestLoad(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-23", Hours: 4, Description: "a"},
		{ID: 2, Date: "2026-02-24", Hours: 5, Description: "b"},
	}}
	m := newManager(store)
	m.SetFilter(collection.Filter{Search: "zzz"})
	m.SetPage(3)

	require.NoError(t, m.Load(context.Background()))
	assert.Len(t, m.Entries(), 2)
	assert.NoError(t, m.Err())

	params := m.Params()
	assert.Equal(t, 1, params.Page)
	assert.True(t, params.Filter.IsZero())
}

func TestLoadTransportFailure(t *testing.T) {
	store := &fakeStore{fetchErr: &entrystore.Error{
		Kind:    entrystore.KindTransport,
		Message: "no response received from server: dial tcp 127.0.0.1:3000: connect: connection refused",
	}}
	m := newManager(store)

	err := m.Load(context.Background())
	require.Error(t, err)
	assert.True(t, collection.IsKind(err, collection.KindTransport))
	assert.Empty(t, m.Entries())
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "connection refused")
}

func TestLoadFailureEmptiesPreviousEntries(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{{ID: 1, Date: "2026-02-23", Hours: 1}}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))
	require.Len(t, m.Entries(), 1)

	store.fetchErr = errors.New("boom")
	require.Error(t, m.Load(context.Background()))
	assert.Empty(t, m.Entries())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   model.Draft
		variant model.FormVariant
		fields  []string
	}{
		{"valid", model.Draft{Hours: hours(8), Description: "work"}, model.VariantDescription, nil},
		{"upper bound", model.Draft{Hours: hours(24), Description: "work"}, model.VariantDescription, nil},
		{"fraction", model.Draft{Hours: hours(0.25), Description: "work"}, model.VariantDescription, nil},
		{"zero hours", model.Draft{Hours: hours(0), Description: "work"}, model.VariantDescription, []string{"hours"}},
		{"negative hours", model.Draft{Hours: hours(-1), Description: "work"}, model.VariantDescription, []string{"hours"}},
		{"too many hours", model.Draft{Hours: hours(24.5), Description: "work"}, model.VariantDescription, []string{"hours"}},
		{"missing hours", model.Draft{Description: "work"}, model.VariantDescription, []string{"hours"}},
		{"blank description", model.Draft{Hours: hours(2), Description: "   "}, model.VariantDescription, []string{"description"}},
		{"all errors", model.Draft{Hours: hours(30)}, model.VariantDescription, []string{"hours", "description"}},
		{"comment variant", model.Draft{Hours: hours(2), Comment: "standup"}, model.VariantComment, nil},
		{"comment missing", model.Draft{Hours: hours(2), Description: "ignored"}, model.VariantComment, []string{"comment"}},
		{"bad date", model.Draft{Hours: hours(2), Description: "x", Date: "27/02/2026"}, model.VariantDescription, []string{"date"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := collection.Validate(tt.draft, tt.variant)
			var got []string
			for _, e := range errs {
				got = append(got, e.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestAddAndRemoveRoundTrip(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{{ID: 1, Date: "2026-02-23", Hours: 4, Description: "a"}}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))
	before := m.Entries()

	added, err := m.Add(context.Background(), model.Draft{
		Date: "2026-02-25", Project: "ECM", Category: "Dev", Description: " review ", Hours: hours(3),
	})
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.Equal(t, "review", added.Description)
	assert.Equal(t, fixedNow, added.CreatedAt)
	assert.Equal(t, fixedNow, added.UpdatedAt)
	assert.Len(t, m.Entries(), 2)

	require.NoError(t, m.Remove(context.Background(), added.ID))
	assert.Equal(t, before, m.Entries())
}

func TestAddDefaultsDateToToday(t *testing.T) {
	m := newManager(&fakeStore{})
	added, err := m.Add(context.Background(), model.Draft{Description: "x", Hours: hours(1)})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-27", added.Date)
}

func TestAddUsesLocalEntryWithoutEcho(t *testing.T) {
	store := &fakeStore{noEcho: true}
	m := newManager(store)

	added, err := m.Add(context.Background(), model.Draft{Date: "2026-02-25", Description: "x", Hours: hours(2)})
	require.NoError(t, err)
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, added, m.Entries()[0])
}

func TestAddValidationFailure(t *testing.T) {
	store := &fakeStore{}
	m := newManager(store)

	_, err := m.Add(context.Background(), model.Draft{Hours: hours(5), Description: ""})
	require.Error(t, err)

	var ce *collection.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, collection.KindValidation, ce.Kind)
	require.Len(t, ce.Fields, 1)
	assert.Equal(t, "description", ce.Fields[0].Field)
	assert.Empty(t, m.Entries())
	assert.Zero(t, store.creates, "backend must not be called")
}

func TestAddCommentVariantStoresComment(t *testing.T) {
	store := &fakeStore{}
	m := newManager(store, collection.WithVariant(model.VariantComment))

	added, err := m.Add(context.Background(), model.Draft{Comment: " real work ", Description: "   ", Hours: hours(2)})
	require.NoError(t, err)
	assert.Equal(t, "real work", added.Description)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "real work", store.entries[0].Description)

	// The description is ignored for the comment variant, so it cannot stand in for a missing comment.
	_, err = m.Add(context.Background(), model.Draft{Comment: "  ", Description: "desc", Hours: hours(1)})
	assert.True(t, collection.IsKind(err, collection.KindValidation))

	updated, err := m.Update(context.Background(), added.ID, model.Draft{Comment: "edited", Description: " ", Hours: hours(3)})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Description)
}

func TestAddCapacityExceeded(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-23", Hours: 24, Description: "a"},
		{ID: 2, Date: "2026-02-24", Hours: 24, Description: "b"},
		{ID: 3, Date: "2026-02-25", Hours: 12, Description: "c"},
		{ID: 4, Date: "2026-02-26", Hours: 24, Description: "d"},
		{ID: 5, Date: "2026-02-27", Hours: 21, Description: "e"},
	}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	// 24+24+12 = 60 and 24+21 = 45 in the week starting Sunday 2026-02-22.
	_, err := m.Add(context.Background(), model.Draft{Date: "2026-02-28", Description: "f", Hours: hours(10)})
	require.Error(t, err)
	assert.True(t, collection.IsKind(err, collection.KindCapacity))
	assert.Len(t, m.Entries(), 5)
	assert.Zero(t, store.creates)
}

func TestAddCapacityTwoLargeEntries(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-23", Hours: 60, Description: "import"},
		{ID: 2, Date: "2026-02-26", Hours: 45, Description: "import"},
	}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	_, err := m.Add(context.Background(), model.Draft{Date: "2026-02-24", Description: "more", Hours: hours(10)})
	var ce *collection.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, collection.KindCapacity, ce.Kind)
	assert.Contains(t, ce.Message, "2026-02-22")
	assert.Len(t, m.Entries(), 2)
}

func TestAddCapacityPerSundayWeek(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-21", Hours: 24, Description: "sat"},
		{ID: 2, Date: "2026-02-20", Hours: 24, Description: "fri"},
		{ID: 3, Date: "2026-02-19", Hours: 24, Description: "thu"},
		{ID: 4, Date: "2026-02-18", Hours: 24, Description: "wed"},
	}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	// The previous week holds 96 hours, but Sunday 2026-02-22 starts a new one.
	_, err := m.Add(context.Background(), model.Draft{Date: "2026-02-22", Description: "sun", Hours: hours(10)})
	require.NoError(t, err)

	_, err = m.Add(context.Background(), model.Draft{Date: "2026-02-17", Description: "tue", Hours: hours(5)})
	assert.True(t, collection.IsKind(err, collection.KindCapacity))
}

func TestAddBackendFailure(t *testing.T) {
	store := &fakeStore{createErr: &entrystore.Error{Kind: entrystore.KindAPI, Message: "database locked", StatusCode: http.StatusInternalServerError}}
	m := newManager(store)

	_, err := m.Add(context.Background(), model.Draft{Description: "x", Hours: hours(1)})
	var ce *collection.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, collection.KindAPI, ce.Kind)
	assert.Equal(t, http.StatusInternalServerError, ce.StatusCode)
	assert.Equal(t, "database locked", ce.Message)
	assert.Empty(t, m.Entries())
	assert.Equal(t, err, m.Err())
}

func TestRemoveUnknownID(t *testing.T) {
	store := &fakeStore{entries: []model.TimeEntry{{ID: 1, Date: "2026-02-23", Hours: 4}}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	require.NoError(t, m.Remove(context.Background(), 999))
	assert.Len(t, m.Entries(), 1)
	assert.Equal(t, []int64{999}, store.removes)
}

func TestRemoveBackendFailure(t *testing.T) {
	store := &fakeStore{
		entries:   []model.TimeEntry{{ID: 1, Date: "2026-02-23", Hours: 4}},
		removeErr: &entrystore.Error{Kind: entrystore.KindAPI, Message: "forbidden", StatusCode: http.StatusForbidden},
	}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	err := m.Remove(context.Background(), 1)
	assert.True(t, collection.IsKind(err, collection.KindAPI))
	assert.Len(t, m.Entries(), 1)
}

func TestUpdate(t *testing.T) {
	created := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-23", Hours: 60, Description: "a", CreatedAt: created},
		{ID: 2, Date: "2026-02-24", Hours: 30, Description: "b"},
	}}
	m := newManager(store)
	require.NoError(t, m.Load(context.Background()))

	// The edited entry's own hours are left out of the week total.
	updated, err := m.Update(context.Background(), 1, model.Draft{Project: "P", Description: "a2", Hours: hours(20)})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-23", updated.Date)
	assert.Equal(t, "a2", updated.Description)
	assert.Equal(t, created, updated.CreatedAt)
	assert.Equal(t, fixedNow, updated.UpdatedAt)

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, 20.0, got.Hours)

	_, err = m.Update(context.Background(), 2, model.Draft{Description: "b", Hours: hours(24)})
	require.NoError(t, err)

	_, err = m.Update(context.Background(), 42, model.Draft{Description: "b", Hours: hours(1)})
	assert.True(t, collection.IsKind(err, collection.KindNotFound))
}

func TestConcurrentMutationIsRefused(t *testing.T) {
	store := &fakeStore{started: make(chan struct{}), block: make(chan struct{})}
	m := newManager(store)

	done := make(chan error, 1)
	go func() {
		_, err := m.Add(context.Background(), model.Draft{Description: "first", Hours: hours(1)})
		done <- err
	}()

	<-store.started
	err := m.Remove(context.Background(), 1)
	assert.True(t, collection.IsKind(err, collection.KindBusy))
	_, err = m.Add(context.Background(), model.Draft{Description: "second", Hours: hours(1)})
	assert.True(t, collection.IsKind(err, collection.KindBusy))

	close(store.block)
	require.NoError(t, <-done)
	assert.Len(t, m.Entries(), 1)
	assert.Empty(t, store.removes)
}

func TestViewAndSubscribe(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	store := &fakeStore{entries: []model.TimeEntry{
		{ID: 1, Date: "2026-02-23", Hours: 2, Description: "Alpha"},
		{ID: 2, Date: "2026-02-21", Hours: 8, Description: "beta"},
		{ID: 3, Date: "2026-02-25", Hours: 5, Description: "alphabet"},
	}}
	m := newManager(store, collection.WithBus(bus), collection.WithPageSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := m.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Load(context.Background()))
	select {
	case c := <-changes:
		assert.Equal(t, event.EntriesLoaded, c.Type)
		assert.Equal(t, 3, c.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no change published")
	}

	m.SetFilter(collection.Filter{Search: "ALPHA"})
	m.SetSort(collection.SortHours)
	m.SetPage(2)

	page := m.View()
	assert.Equal(t, 2, page.Matched)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(1), page.Entries[0].ID)
	assert.Empty(t, page.Warning)
}

func TestSubscribeWithoutBus(t *testing.T) {
	m := newManager(&fakeStore{})
	_, err := m.Subscribe(context.Background())
	assert.Error(t, err)
}
