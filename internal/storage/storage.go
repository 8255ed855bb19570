// Package storage persists time entries for `treg serve`.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("time entry not found")
	// ErrConflict is returned when creating an entry whose id is taken.
	ErrConflict = errors.New("time entry id already exists")
)

// Repository is the persistence contract of the server.
type Repository interface {
	List(ctx context.Context) ([]model.TimeEntry, error)
	Get(ctx context.Context, id int64) (model.TimeEntry, error)
	// Create stores e, assigning an id when e.ID is zero.
	Create(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error)
	Update(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// BaseDir returns the default data directory (~/.treg/data).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".treg", "data"), nil
}

// dayFilePath returns the path for the given date's JSON file.
func dayFilePath(base string, t time.Time) string {
	return filepath.Join(base, t.Format("2006"), t.Format("01"), t.Format("02")+".json")
}

// LoadDay loads the DayFile for the given date. Returns an empty DayFile if not found.
func LoadDay(base string, t time.Time) (model.DayFile, error) {
	path := dayFilePath(base, t)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.DayFile{Date: timecalc.DateKey(t), Entries: []model.TimeEntry{}}, nil
	}
	if err != nil {
		return model.DayFile{}, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var df model.DayFile
	if err := json.Unmarshal(data, &df); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.DayFile{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	if df.Entries == nil {
		df.Entries = []model.TimeEntry{}
	}
	return df, nil
}

// SaveDay atomically writes a DayFile for the given date. An empty day
// removes the file.
func SaveDay(base string, t time.Time, df model.DayFile) error {
	path := dayFilePath(base, t)
	if len(df.Entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage error removing %s: %w", path, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// DayFiles is a Repository over one JSON file per calendar day.
type DayFiles struct {
	base string
	now  func() time.Time

	mu     sync.Mutex
	index  map[int64]time.Time // id -> day
	nextID int64
}

var _ Repository = (*DayFiles)(nil)

// Open scans base and builds the id index.
func Open(base string) (*DayFiles, error) {
	r := &DayFiles{base: base, now: time.Now, index: map[int64]time.Time{}, nextID: 1}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating %s: %w", base, err)
	}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		day, ok := dayFromPath(base, path)
		if !ok {
			return nil
		}
		df, err := LoadDay(base, day)
		if err != nil {
			return err
		}
		for _, e := range df.Entries {
			r.index[e.ID] = day
			if e.ID >= r.nextID {
				r.nextID = e.ID + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage error scanning %s: %w", base, err)
	}
	return r, nil
}

// dayFromPath parses base/YYYY/MM/DD.json.
func dayFromPath(base, path string) (time.Time, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return time.Time{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(timecalc.DateLayout,
		parts[0]+"-"+parts[1]+"-"+strings.TrimSuffix(parts[2], ".json"), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// List returns all entries, oldest day first.
func (r *DayFiles) List(_ context.Context) ([]model.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	days := make([]time.Time, 0, len(r.index))
	seen := map[time.Time]bool{}
	for _, d := range r.index {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := []model.TimeEntry{}
	for _, d := range days {
		df, err := LoadDay(r.base, d)
		if err != nil {
			return nil, err
		}
		out = append(out, df.Entries...)
	}
	return out, nil
}

// Get returns the entry with the given id.
func (r *DayFiles) Get(_ context.Context, id int64) (model.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, _, err := r.find(id)
	return e, err
}

func (r *DayFiles) find(id int64) (model.TimeEntry, time.Time, error) {
	day, ok := r.index[id]
	if !ok {
		return model.TimeEntry{}, time.Time{}, ErrNotFound
	}
	df, err := LoadDay(r.base, day)
	if err != nil {
		return model.TimeEntry{}, time.Time{}, err
	}
	for _, e := range df.Entries {
		if e.ID == id {
			return e, day, nil
		}
	}
	return model.TimeEntry{}, time.Time{}, ErrNotFound
}

// Create appends e to its day file.
func (r *DayFiles) Create(_ context.Context, e model.TimeEntry) (model.TimeEntry, error) {
	day, err := timecalc.ParseDate(e.Date, time.UTC)
	if err != nil {
		return model.TimeEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == 0 {
		e.ID = r.nextID
	} else if _, taken := r.index[e.ID]; taken {
		return model.TimeEntry{}, ErrConflict
	}
	now := r.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	df, err := LoadDay(r.base, day)
	if err != nil {
		return model.TimeEntry{}, err
	}
	df.Entries = append(df.Entries, e)
	if err := SaveDay(r.base, day, df); err != nil {
		return model.TimeEntry{}, err
	}
	r.index[e.ID] = day
	if e.ID >= r.nextID {
		r.nextID = e.ID + 1
	}
	return e, nil
}

// Update replaces the entry with e.ID, moving it between day files when its
// date changed.
func (r *DayFiles) Update(_ context.Context, e model.TimeEntry) (model.TimeEntry, error) {
	newDay, err := timecalc.ParseDate(e.Date, time.UTC)
	if err != nil {
		return model.TimeEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, oldDay, err := r.find(e.ID)
	if err != nil {
		return model.TimeEntry{}, err
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = r.now().UTC()

	if oldDay.Equal(newDay) {
		df, err := LoadDay(r.base, oldDay)
		if err != nil {
			return model.TimeEntry{}, err
		}
		for i := range df.Entries {
			if df.Entries[i].ID == e.ID {
				df.Entries[i] = e
			}
		}
		return e, SaveDay(r.base, oldDay, df)
	}

	if err := r.removeFrom(oldDay, e.ID); err != nil {
		return model.TimeEntry{}, err
	}
	df, err := LoadDay(r.base, newDay)
	if err != nil {
		return model.TimeEntry{}, err
	}
	df.Entries = append(df.Entries, e)
	if err := SaveDay(r.base, newDay, df); err != nil {
		return model.TimeEntry{}, err
	}
	r.index[e.ID] = newDay
	return e, nil
}

// Delete removes the entry with the given id.
func (r *DayFiles) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day, ok := r.index[id]
	if !ok {
		return ErrNotFound
	}
	if err := r.removeFrom(day, id); err != nil {
		return err
	}
	delete(r.index, id)
	return nil
}

func (r *DayFiles) removeFrom(day time.Time, id int64) error {
	df, err := LoadDay(r.base, day)
	if err != nil {
		return err
	}
	kept := df.Entries[:0]
	for _, e := range df.Entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	df.Entries = kept
	return SaveDay(r.base, day, df)
}

// Close is a no-op; every write is flushed immediately.
func (r *DayFiles) Close() error { return nil }
