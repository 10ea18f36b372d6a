package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/tgsimilar/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "tgsimilar.db"

// storedTimeFormat is fixed-width so stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite-based storage for channel lists and crawl runs.
//
// The stored channel list is replaced as a whole, so a crawl without
// arguments repeats exactly the last submitted list. A run is saved with
// its items and discovered channels in one transaction; a failed save
// leaves no partial run behind. Timestamps are stored as fixed-width UTC
// text so history queries can order by them.
//
// Store is safe for concurrent use through the underlying *sql.DB.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	-- Single-slot submitted channel list
	CREATE TABLE IF NOT EXISTS channel_list (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		channels_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One row per crawl run, the full run kept as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		dropped INTEGER NOT NULL,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Discovered channels, one row per (run, source, channel)
	CREATE TABLE IF NOT EXISTS discovered (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		username TEXT NOT NULL,
		title TEXT,
		members INTEGER,
		category TEXT,
		discovered_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_discovered_source ON discovered(source);
	CREATE INDEX IF NOT EXISTS idx_discovered_username ON discovered(username);

	-- Single-slot pointer to the last result
	CREATE TABLE IF NOT EXISTS last_result (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		run_id TEXT NOT NULL REFERENCES runs(id)
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// SaveChannelList replaces the stored channel list.
func (s *Store) SaveChannelList(ctx context.Context, channels []model.ChannelID) error {
	if channels == nil {
		channels = []model.ChannelID{}
	}
	data, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("failed to serialize channel list: %w", err)
	}

	query := `
	INSERT INTO channel_list (slot, channels_json, updated_at)
	VALUES (1, ?, ?)
	ON CONFLICT(slot) DO UPDATE SET
		channels_json = excluded.channels_json,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, string(data), formatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to save channel list: %w", err)
	}
	return nil
}

// LoadChannelList returns the stored channel list, or an empty list if
// nothing was saved yet.
func (s *Store) LoadChannelList(ctx context.Context) ([]model.ChannelID, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT channels_json FROM channel_list WHERE slot = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.ChannelID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel list: %w", err)
	}

	var channels []model.ChannelID
	if err := json.Unmarshal([]byte(data), &channels); err != nil {
		return nil, fmt.Errorf("failed to parse channel list: %w", err)
	}
	return channels, nil
}

// SaveLastResult stores run in the history and makes it the last result.
// Saving a run with an existing ID replaces it.
func (s *Store) SaveLastResult(ctx context.Context, run *model.CrawlRun) error {
	if run == nil {
		return errors.New("cannot save nil run")
	}
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	upsertRun := `
	INSERT INTO runs (id, started_at, finished_at, status, total, succeeded, failed, cancelled, dropped, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		status = excluded.status,
		total = excluded.total,
		succeeded = excluded.succeeded,
		failed = excluded.failed,
		cancelled = excluded.cancelled,
		dropped = excluded.dropped,
		run_json = excluded.run_json
	`
	if _, err := tx.ExecContext(ctx, upsertRun,
		run.ID,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		string(run.Status),
		run.Total,
		run.Succeeded,
		run.Failed,
		run.Cancelled,
		run.Dropped,
		string(runJSON),
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM discovered WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear discovered channels: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
	INSERT INTO discovered (run_id, source, username, title, members, category, discovered_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for _, item := range run.Items {
		for _, ch := range item.Channels {
			var members sql.NullInt64
			if ch.MemberCount != nil {
				members = sql.NullInt64{Int64: *ch.MemberCount, Valid: true}
			}
			if _, err := insert.ExecContext(ctx,
				run.ID,
				item.Source.String(),
				ch.Username,
				ch.Title,
				members,
				ch.Category,
				formatTimestamp(ch.DiscoveredAt),
			); err != nil {
				return fmt.Errorf("failed to save discovered channel %s: %w", ch.Username, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO last_result (slot, run_id) VALUES (1, ?)
	ON CONFLICT(slot) DO UPDATE SET run_id = excluded.run_id
	`, run.ID); err != nil {
		return fmt.Errorf("failed to update last result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// LoadLastResult returns the last saved run, or nil if there is none.
func (s *Store) LoadLastResult(ctx context.Context) (*model.CrawlRun, error) {
	query := `
	SELECT r.run_json FROM last_result l
	JOIN runs r ON r.id = l.run_id
	WHERE l.slot = 1
	`
	return s.scanRun(s.db.QueryRowContext(ctx, query))
}

// GetRun returns the run with id, or nil if it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*model.CrawlRun, error) {
	return s.scanRun(s.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id))
}

func (s *Store) scanRun(row *sql.Row) (*model.CrawlRun, error) {
	var runJSON string
	err := row.Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.CrawlRun
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// RunSummary is the history view of a run without its items.
type RunSummary struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     model.RunStatus `json:"status"`
	Total      int             `json:"total_channels"`
	Succeeded  int             `json:"successful_channels"`
	Failed     int             `json:"failed_channels"`
	Cancelled  int             `json:"cancelled_channels"`
	Dropped    int             `json:"dropped_channels"`

	// Discovered counts stored channel rows of the run.
	Discovered int `json:"discovered"`
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT r.id, r.started_at, r.finished_at, r.status, r.total, r.succeeded,
		r.failed, r.cancelled, r.dropped,
		(SELECT COUNT(*) FROM discovered d WHERE d.run_id = r.id)
	FROM runs r
	ORDER BY r.started_at DESC, r.rowid DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var (
			sum      RunSummary
			started  string
			finished sql.NullString
			status   string
		)
		if err := rows.Scan(
			&sum.ID,
			&started,
			&finished,
			&status,
			&sum.Total,
			&sum.Succeeded,
			&sum.Failed,
			&sum.Cancelled,
			&sum.Dropped,
			&sum.Discovered,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = parseTimestamp(started)
		if finished.Valid {
			sum.FinishedAt = parseTimestamp(finished.String)
		}
		sum.Status = model.RunStatus(status)
		results = append(results, sum)
	}

	return results, rows.Err()
}

// QueryDiscovered returns stored discovered channels across all runs,
// newest first. A non-empty source restricts the result to that source,
// compared case-insensitively.
func (s *Store) QueryDiscovered(ctx context.Context, source string) ([]model.DiscoveredChannel, error) {
	query := `
	SELECT source, username, title, members, category, discovered_at
	FROM discovered
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if source != "" {
		query += " AND lower(source) = lower(?)"
		args = append(args, source)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered channels: %w", err)
	}
	defer rows.Close()

	var results []model.DiscoveredChannel
	for rows.Next() {
		var (
			ch       model.DiscoveredChannel
			src      string
			title    sql.NullString
			members  sql.NullInt64
			category sql.NullString
			at       sql.NullString
		)
		if err := rows.Scan(&src, &ch.Username, &title, &members, &category, &at); err != nil {
			return nil, fmt.Errorf("failed to scan discovered channel: %w", err)
		}
		ch.Source = model.ChannelID(src)
		ch.Title = title.String
		ch.Category = category.String
		ch.URL = model.ChannelURL(ch.Username)
		if members.Valid {
			n := members.Int64
			ch.MemberCount = &n
		}
		if at.Valid {
			ch.DiscoveredAt = parseTimestamp(at.String)
		}
		results = append(results, ch)
	}

	return results, rows.Err()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
