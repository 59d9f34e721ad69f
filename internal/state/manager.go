package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Round status values
const (
	StatusSuccess   = "success"   // every file handled without error
	StatusPartial   = "partial"   // some files failed
	StatusFailed    = "failed"    // the round itself failed
	StatusCancelled = "cancelled" // interrupted by shutdown
)

// Manager handles persistence of round history
type Manager struct {
	db *sql.DB
}

// RoundRecord summarizes one scan round. Individual upload outcomes are
// not recorded.
type RoundRecord struct {
	ID         int64
	StartTime  time.Time
	EndTime    time.Time
	Status     string
	FilesSeen  int
	Matched    int
	NotMatched int
	Unstable   int
	Vanished   int
	Failed     int
	BytesFreed int64
	Error      string
}

// Totals aggregates every recorded round
type Totals struct {
	Rounds     int
	Matched    int
	BytesFreed int64
}

// NewManager creates a new state manager
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dedupwatch.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// status reads the database while the agent writes to it
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		files_seen INTEGER DEFAULT 0,
		matched INTEGER DEFAULT 0,
		not_matched INTEGER DEFAULT 0,
		unstable INTEGER DEFAULT 0,
		vanished INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes_freed INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_start_time ON rounds(start_time DESC);
	`

	_, err := m.db.Exec(schema)
	return err
}

func validStatus(s string) bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// SaveRound records a finished round
func (m *Manager) SaveRound(record RoundRecord) error {
	if !validStatus(record.Status) {
		return fmt.Errorf("invalid status: %s", record.Status)
	}

	query := `
		INSERT INTO rounds (start_time, end_time, status, files_seen, matched, not_matched,
			unstable, vanished, failed, bytes_freed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.FilesSeen,
		record.Matched,
		record.NotMatched,
		record.Unstable,
		record.Vanished,
		record.Failed,
		record.BytesFreed,
		record.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to save round record: %w", err)
	}

	return nil
}

const selectRound = `
	SELECT id, start_time, end_time, status, files_seen, matched, not_matched,
		unstable, vanished, failed, bytes_freed, COALESCE(error, '')
	FROM rounds
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(row scanner) (RoundRecord, error) {
	var record RoundRecord
	err := row.Scan(
		&record.ID,
		&record.StartTime,
		&record.EndTime,
		&record.Status,
		&record.FilesSeen,
		&record.Matched,
		&record.NotMatched,
		&record.Unstable,
		&record.Vanished,
		&record.Failed,
		&record.BytesFreed,
		&record.Error,
	)
	return record, err
}

// History retrieves the most recent rounds, newest first
func (m *Manager) History(limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectRound+" ORDER BY start_time DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []RoundRecord
	for rows.Next() {
		record, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// LastRound retrieves the most recent round, or nil when none is recorded
func (m *Manager) LastRound() (*RoundRecord, error) {
	record, err := scanRound(m.db.QueryRow(selectRound + " ORDER BY start_time DESC, id DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last round: %w", err)
	}

	return &record, nil
}

// Totals sums matches and freed bytes over all recorded rounds
func (m *Manager) Totals() (Totals, error) {
	var t Totals
	err := m.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(matched), 0), COALESCE(SUM(bytes_freed), 0) FROM rounds",
	).Scan(&t.Rounds, &t.Matched, &t.BytesFreed)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to query totals: %w", err)
	}
	return t, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
