package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
)

// SQLiteStore persists points in SQLite and scores them in process.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS points (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector BLOB NOT NULL,
		payload TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_points_collection ON points(collection);
	`
	_, err := db.Exec(schema)
	return err
}

// Type returns the backend name.
func (s *SQLiteStore) Type() string {
	return BackendSQLite
}

// Upsert inserts or replaces items in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, items []models.StoredItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (collection, id, dim, vector, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   dim = excluded.dim, vector = excluded.vector,
		   payload = excluded.payload, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("empty vector for %s", it.ID)
		}
		payloadJSON, err := json.Marshal(it.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, it.ID, len(it.Vector), utils.EncodeVector(it.Vector), string(payloadJSON), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns the stored items among ids, in the order given. Unknown ids are skipped.
func (s *SQLiteStore) Get(ctx context.Context, collection string, ids []string) ([]models.StoredItem, error) {
	if len(ids) == 0 {
		return []models.StoredItem{}, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, payload FROM points WHERE collection = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]models.StoredItem, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		found[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.StoredItem, 0, len(found))
	for _, id := range ids {
		if it, ok := found[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Delete removes ids from the collection.
func (s *SQLiteStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM points WHERE collection = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// Search scans the collection's points of matching dimension and returns the best limit.
func (s *SQLiteStore) Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]models.SearchHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if limit <= 0 {
		return []models.SearchHit{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, payload FROM points WHERE collection = ? AND dim = ?`, collection, len(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]models.SearchHit, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(it.Payload, filter) {
			continue
		}
		hits = append(hits, models.SearchHit{
			ID:         it.ID,
			Collection: collection,
			Score:      utils.Cosine(query, it.Vector),
			Payload:    it.Payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(hits, limit), nil
}

// Count returns the number of points in collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanItem(rows *sql.Rows) (models.StoredItem, error) {
	var it models.StoredItem
	var blob []byte
	var payloadJSON sql.NullString
	if err := rows.Scan(&it.ID, &blob, &payloadJSON); err != nil {
		return it, err
	}
	vec, err := utils.DecodeVector(blob)
	if err != nil {
		return it, fmt.Errorf("point %s: %w", it.ID, err)
	}
	it.Vector = vec
	if payloadJSON.Valid && payloadJSON.String != "" && payloadJSON.String != "null" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &it.Payload); err != nil {
			return it, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return it, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
