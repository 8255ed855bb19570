package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/config"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/storage"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"1700000000000", 1700000000000, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"12abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&collection.Error{Kind: collection.KindValidation}, 1},
		{&collection.Error{Kind: collection.KindCapacity}, 1},
		{&collection.Error{Kind: collection.KindBusy}, 1},
		{&collection.Error{Kind: collection.KindTransport}, 2},
		{&collection.Error{Kind: collection.KindAPI, StatusCode: 500}, 2},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEntryFlagsDraft(t *testing.T) {
	var f entryFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse([]string{"--hours", "2.5", "--project", "ECM"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	base := model.Draft{Date: "2026-02-27", Project: "Old", Description: "kept"}
	d := f.draft(fs, base)
	if d.Project != "ECM" || d.Date != "2026-02-27" || d.Description != "kept" {
		t.Errorf("draft = %+v", d)
	}
	if d.Hours == nil || *d.Hours != 2.5 {
		t.Errorf("Hours = %v, want 2.5", d.Hours)
	}
}

func TestEntryFlagsDraftWithoutHours(t *testing.T) {
	var f entryFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse([]string{"-m", "review"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d := f.draft(fs, model.Draft{}); d.Hours != nil {
		t.Errorf("Hours = %v, want nil when --hours is not given", *d.Hours)
	}
}

func TestDraftFormRoundTrip(t *testing.T) {
	hours := 1.25
	d := model.Draft{Date: "2026-02-27", Project: "ECM", Category: "Dev", Description: "desc", Comment: "note", Hours: &hours}

	fm := newDraftForm(d, model.VariantComment)
	if fm.Text != "note" || fm.Hours != "1.25" {
		t.Errorf("form = %+v", fm)
	}
	back := fm.Draft(model.VariantComment)
	if back.Comment != "note" || back.Description != "" || back.Hours == nil || *back.Hours != 1.25 {
		t.Errorf("draft = %+v", back)
	}

	fm = newDraftForm(model.Draft{}, model.VariantDescription)
	if fm.Date == "" {
		t.Error("empty draft should default the form date to today")
	}
	fm.Hours = "lots"
	if fm.Draft(model.VariantDescription).Hours != nil {
		t.Error("unparsable hours should leave Hours nil")
	}
}

func TestDraftOf(t *testing.T) {
	e := model.TimeEntry{ID: 7, Date: "2026-02-27", Project: "ECM", Description: "work", Hours: 3}
	for _, v := range []model.FormVariant{model.VariantDescription, model.VariantComment} {
		d := draftOf(e, v)
		if got := collection.Validate(d, v); len(got) != 0 {
			t.Errorf("Validate(draftOf(e, %v)) = %v, want no errors", v, got)
		}
		if d.Text(v) != "work" {
			t.Errorf("Text(%v) = %q, want work", v, d.Text(v))
		}
	}
}

func TestDescribeError(t *testing.T) {
	err := &collection.Error{
		Kind:    collection.KindValidation,
		Message: "Hours is required.",
		Fields:  []model.FieldError{{Field: "hours", Message: "Hours is required."}},
	}
	if got := describeError(err); !strings.Contains(got, "hours: Hours is required.") {
		t.Errorf("describeError = %q", got)
	}

	api := &collection.Error{Kind: collection.KindAPI, Message: "boom", StatusCode: 500}
	if got := describeError(api); !strings.Contains(got, "(500): boom") {
		t.Errorf("describeError = %q", got)
	}
}

func TestPrintPage(t *testing.T) {
	var buf bytes.Buffer
	printPage(&buf, collection.Page{
		Entries:    []model.TimeEntry{{ID: 1, Date: "2026-02-27", Project: "ECM", Description: "review", Hours: 2.5}},
		Page:       1,
		PageSize:   5,
		TotalPages: 3,
		Matched:    11,
		Warning:    "You have logged 101 hours in the last 7 days.",
	})
	out := buf.String()
	for _, want := range []string{"review", "2.5", "Page 1/3", "11 entries", "101 hours"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printPage(&buf, collection.Page{Page: 1, TotalPages: 1})
	if !strings.Contains(buf.String(), "No entries found.") {
		t.Errorf("empty page output = %q", buf.String())
	}
}

func TestOpenRepositoryJSON(t *testing.T) {
	dir := t.TempDir()
	cfg = config.Default()
	cfg.Server.Storage.DSN = dir
	t.Cleanup(func() { cfg = config.Config{} })

	repo, err := openRepository(context.Background())
	if err != nil {
		t.Fatalf("openRepository: %v", err)
	}
	defer repo.Close()
	if _, ok := repo.(*storage.DayFiles); !ok {
		t.Errorf("repo = %T, want *storage.DayFiles", repo)
	}
}

func TestOpenRepositoryPostgresNeedsDSN(t *testing.T) {
	cfg = config.Default()
	cfg.Server.Storage.Driver = "postgres"
	t.Cleanup(func() { cfg = config.Config{} })

	if _, err := openRepository(context.Background()); err == nil {
		t.Fatal("expected an error without a postgres dsn")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "Meetings", "x"); got != "Meetings" {
		t.Errorf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
}

func TestSyncWindow(t *testing.T) {
	now := time.Date(2026, 2, 27, 15, 4, 0, 0, time.UTC)
	day := func(d int, h, m, s int) time.Time { return time.Date(2026, 2, d, h, m, s, 0, time.UTC) }

	tests := []struct {
		name             string
		date, from, to   string
		wantFrom, wantTo time.Time
		wantErr          bool
	}{
		{name: "default today", wantFrom: day(27, 0, 0, 0), wantTo: day(27, 23, 59, 59)},
		{name: "single date", date: "2026-02-23", wantFrom: day(23, 0, 0, 0), wantTo: day(23, 23, 59, 59)},
		{name: "open range", from: "2026-02-22", wantFrom: day(22, 0, 0, 0), wantTo: day(27, 23, 59, 59)},
		{name: "closed range", from: "2026-02-22", to: "2026-02-24", wantFrom: day(22, 0, 0, 0), wantTo: day(24, 23, 59, 59)},
		{name: "to without from", to: "2026-02-24", wantErr: true},
		{name: "reversed", from: "2026-02-25", to: "2026-02-24", wantErr: true},
		{name: "bad date", date: "27.02.2026", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := syncWindow(now, tt.date, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("syncWindow error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !from.Equal(tt.wantFrom) || !to.Equal(tt.wantTo) {
				t.Errorf("syncWindow = %v – %v, want %v – %v", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestCheckExportFormat(t *testing.T) {
	tests := []struct {
		format, out string
		wantErr     bool
	}{
		{"csv", "", false},
		{"json", "", false},
		{"md", "out.md", false},
		{"xlsx", "out.xlsx", false},
		{"xlsx", "", true},
		{"pdf", "out.pdf", true},
	}
	for _, tt := range tests {
		if err := checkExportFormat(tt.format, tt.out); (err != nil) != tt.wantErr {
			t.Errorf("checkExportFormat(%q, %q) error = %v, wantErr %v", tt.format, tt.out, err, tt.wantErr)
		}
	}
}

func TestWriteExportToFile(t *testing.T) {
	now := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	entries := []model.TimeEntry{{ID: 1, Date: "2026-02-27", Project: "ECM", Description: "review", Hours: 2}}
	path := filepath.Join(t.TempDir(), "entries.csv")

	if err := writeExport(nil, path, "csv", entries, now); err != nil {
		t.Fatalf("writeExport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,date,project,category,description,hours\n") {
		t.Errorf("export = %q", data)
	}
}

func TestWriteExportFailureRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.pdf")
	if err := writeExport(nil, path, "pdf", nil, time.Now()); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial export left behind: %v", err)
	}
}

func TestWriteExportToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := writeExport(&buf, "", "json", nil, time.Now()); err != nil {
		t.Fatalf("writeExport: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("export = %q, want []", buf.String())
	}
}
