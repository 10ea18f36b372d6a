package database

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/tgsimilar/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func members(n int64) *int64 { return &n }

func testRun(id string, started time.Time) *model.CrawlRun {
	run := model.NewCrawlRun(id, model.NewWorkItems([]model.ChannelID{"golang", "missing"}), started)
	run.FinishedAt = started.Add(time.Minute)
	run.Status = model.RunCompleted
	run.Dropped = 1
	run.Items[0].Status = model.ItemSucceeded
	run.Items[0].Attempts = 1
	run.Items[0].Channels = []model.DiscoveredChannel{
		{Title: "Go News", Username: "gonews", URL: "https://t.me/gonews", MemberCount: members(1500), Category: "Tech", DiscoveredAt: started, Source: "golang"},
		{Title: "Gophers", Username: "gophers", URL: "https://t.me/gophers", DiscoveredAt: started, Source: "golang"},
	}
	run.Items[1].Status = model.ItemFailed
	run.Items[1].Attempts = 1
	run.Items[1].ErrorClass = model.ErrorClassNotAChannel
	run.Recount()
	return run
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if s.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "absent"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = s.Close()

		s, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = s.Close()
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("DefaultOptions() = %+v", opts)
	}
}

func TestChannelList(t *testing.T) {
	t.Parallel()

	t.Run("empty before first save", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		got, err := s.LoadChannelList(t.Context())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("LoadChannelList() = %v, want empty", got)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		ctx := t.Context()
		if err := s.SaveChannelList(ctx, []model.ChannelID{"first", "second"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		want := []model.ChannelID{"third", "fourth", "fifth"}
		if err := s.SaveChannelList(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.LoadChannelList(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("LoadChannelList() = %v, want %v", got, want)
		}
	})

	t.Run("nil list stored as empty", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		if err := s.SaveChannelList(t.Context(), nil); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.LoadChannelList(t.Context())
		if err != nil || len(got) != 0 {
			t.Errorf("LoadChannelList() = %v, %v", got, err)
		}
	})
}

func TestLastResult(t *testing.T) {
	t.Parallel()

	t.Run("nil before first save", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		run, err := s.LoadLastResult(t.Context())
		if err != nil || run != nil {
			t.Errorf("LoadLastResult() = %v, %v; want nil, nil", run, err)
		}
	})

	t.Run("round trip keeps items", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		started := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
		want := testRun("run-a", started)
		if err := s.SaveLastResult(t.Context(), want); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.LoadLastResult(t.Context())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.ID != "run-a" || got.Succeeded != 1 || got.Failed != 1 || got.Dropped != 1 {
			t.Errorf("run = %+v", got)
		}
		if len(got.Items) != 2 || len(got.Items[0].Channels) != 2 {
			t.Fatalf("items not preserved: %+v", got.Items)
		}
		if m := got.Items[0].Channels[0].MemberCount; m == nil || *m != 1500 {
			t.Errorf("member count lost: %v", m)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		t.Parallel()

		s := setupTestDB(t)
		now := time.Now()
		for _, id := range []string{"run-1", "run-2"} {
			if err := s.SaveLastResult(t.Context(), testRun(id, now)); err != nil {
				t.Fatalf("save %s: %v", id, err)
			}
		}
		got, err := s.LoadLastResult(t.Context())
		if err != nil || got.ID != "run-2" {
			t.Errorf("LoadLastResult() = %v, %v; want run-2", got, err)
		}
	})

	t.Run("nil run rejected", func(t *testing.T) {
		t.Parallel()

		if err := setupTestDB(t).SaveLastResult(t.Context(), nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := t.Context()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		if err := s.SaveLastResult(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	if !slices.Equal(ids, []string{"new", "middle", "old"}) {
		t.Errorf("ListRuns order = %v", ids)
	}
	if runs[0].Discovered != 2 || runs[0].Status != model.RunCompleted || runs[0].Total != 2 {
		t.Errorf("summary = %+v", runs[0])
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("ListRuns(1) = %v, %v", limited, err)
	}

	run, err := s.GetRun(ctx, "middle")
	if err != nil || run == nil || run.ID != "middle" {
		t.Errorf("GetRun(middle) = %v, %v", run, err)
	}
	missing, err := s.GetRun(ctx, "absent")
	if err != nil || missing != nil {
		t.Errorf("GetRun(absent) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSaveLastResult_ReplacesDiscoveredRows(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := t.Context()
	run := testRun("same", time.Now())
	if err := s.SaveLastResult(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveLastResult(ctx, run); err != nil {
		t.Fatalf("second save: %v", err)
	}

	found, err := s.QueryDiscovered(ctx, "")
	if err != nil {
		t.Fatalf("QueryDiscovered: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("got %d rows, want 2 after re-saving the same run", len(found))
	}
}

func TestQueryDiscovered(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := t.Context()
	if err := s.SaveLastResult(ctx, testRun("r1", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.QueryDiscovered(ctx, "GoLang")
	if err != nil {
		t.Fatalf("QueryDiscovered: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2", len(got))
	}
	byName := map[string]model.DiscoveredChannel{}
	for _, ch := range got {
		byName[ch.Username] = ch
	}
	if ch := byName["gonews"]; ch.MemberCount == nil || *ch.MemberCount != 1500 || ch.Source != "golang" || ch.URL != "https://t.me/gonews" {
		t.Errorf("gonews = %+v", ch)
	}
	if ch := byName["gophers"]; ch.MemberCount != nil {
		t.Errorf("missing member count should stay nil, got %v", *ch.MemberCount)
	}

	none, err := s.QueryDiscovered(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("QueryDiscovered(missing) = %v, %v", none, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{"2025-01-02T03:04:05.000000000Z", false},
		{"2025-01-02T03:04:05Z", false},
		{"2025-01-02 03:04:05", false},
		{"", true},
		{"not a time", true},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
		}
	}
	ts := time.Date(2025, 5, 6, 7, 8, 9, 10, time.UTC)
	if got := parseTimestamp(formatTimestamp(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
}
