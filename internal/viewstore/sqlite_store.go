// Package viewstore persists saved viewer state using SQLite.
package viewstore

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a view does not exist.
var ErrNotFound = errors.New("view not found")

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// View is a saved viewer state: the embedding method, the selected cell
// type and the categories hidden from the legend.
type View struct {
	ID        string    `json:"view_id"`
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name"`
	Method    string    `json:"method"`
	CellType  string    `json:"cell_type"`
	Hidden    []string  `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides persistent storage for views using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based view store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS views (
		view_id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		cell_type TEXT NOT NULL,
		hidden_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_views_dataset ON views(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_views_updated ON views(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create stores a new view. An empty ID is generated; timestamps are set
// to now.
func (s *Store) Create(v *View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = generateViewID()
	}
	if v.Hidden == nil {
		v.Hidden = []string{}
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now

	hiddenJSON, err := json.Marshal(v.Hidden)
	if err != nil {
		return fmt.Errorf("failed to marshal hidden categories: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO views (view_id, dataset_id, name, method, cell_type, hidden_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.ID,
		v.DatasetID,
		v.Name,
		v.Method,
		v.CellType,
		string(hiddenJSON),
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	return err
}

// Get retrieves a view by ID.
func (s *Store) Get(viewID string) (*View, error) {
	row := s.db.QueryRow(`
		SELECT view_id, dataset_id, name, method, cell_type, hidden_json, created_at, updated_at
		FROM views WHERE view_id = ?
	`, viewID)

	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, viewID)
	}
	return v, err
}

// Update replaces the mutable fields of an existing view and bumps its
// updated_at.
func (s *Store) Update(v *View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Hidden == nil {
		v.Hidden = []string{}
	}
	hiddenJSON, err := json.Marshal(v.Hidden)
	if err != nil {
		return fmt.Errorf("failed to marshal hidden categories: %w", err)
	}
	v.UpdatedAt = time.Now().UTC()

	result, err := s.db.Exec(`
		UPDATE views SET name = ?, method = ?, cell_type = ?, hidden_json = ?, updated_at = ?
		WHERE view_id = ?
	`, v.Name, v.Method, v.CellType, string(hiddenJSON), v.UpdatedAt.Format(timeLayout), v.ID)
	if err != nil {
		return err
	}
	return requireRow(result, v.ID)
}

// Delete deletes a view.
func (s *Store) Delete(viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM views WHERE view_id = ?", viewID)
	if err != nil {
		return err
	}
	return requireRow(result, viewID)
}

// ListByDataset returns the views of a dataset, most recently updated first.
func (s *Store) ListByDataset(datasetID string) ([]*View, error) {
	rows, err := s.db.Query(`
		SELECT view_id, dataset_id, name, method, cell_type, hidden_json, created_at, updated_at
		FROM views WHERE dataset_id = ?
		ORDER BY updated_at DESC
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]*View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// DeleteOlderThan deletes views not updated since cutoff.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		DELETE FROM views WHERE updated_at < ?
	`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanView(row scanner) (*View, error) {
	var v View
	var hiddenJSON, createdAtStr, updatedAtStr string

	err := row.Scan(
		&v.ID,
		&v.DatasetID,
		&v.Name,
		&v.Method,
		&v.CellType,
		&hiddenJSON,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(hiddenJSON), &v.Hidden); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hidden categories: %w", err)
	}
	v.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
	v.UpdatedAt, _ = time.Parse(timeLayout, updatedAtStr)
	return &v, nil
}

func requireRow(result sql.Result, viewID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, viewID)
	}
	return nil
}

func generateViewID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
