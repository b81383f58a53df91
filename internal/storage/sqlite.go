package storage

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

	"github.com/personaldrive/semidx/internal/models"
	"github.com/personaldrive/semidx/internal/semerr"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
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

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		hash TEXT,
		folder_id TEXT,
		description TEXT,
		tags TEXT,
		status TEXT NOT NULL,
		indexed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id);
	CREATE INDEX IF NOT EXISTS idx_files_owner_hash ON files(owner_id, hash);
	CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateFile inserts a file record.
func (s *SQLiteStorage) CreateFile(ctx context.Context, f *models.File) error {
	tagsJSON, err := json.Marshal(f.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, name, size, mime_type, storage_path, hash, folder_id, description, tags, status, indexed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.Name, f.Size, f.MimeType, f.StoragePath, f.Hash, f.FolderID, f.Description, string(tagsJSON), f.Status, f.Indexed, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

// GetFile returns a file record by ID.
func (s *SQLiteStorage) GetFile(ctx context.Context, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, size, mime_type, storage_path, hash, folder_id, description, tags, status, indexed, created_at, updated_at
		 FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, semerr.Newf(semerr.KindNotFound, "file not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFile updates an existing file record.
func (s *SQLiteStorage) UpdateFile(ctx context.Context, f *models.File) error {
	tagsJSON, err := json.Marshal(f.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	f.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET name = ?, size = ?, mime_type = ?, storage_path = ?, hash = ?, folder_id = ?, description = ?, tags = ?, status = ?, indexed = ?, updated_at = ?
		 WHERE id = ?`,
		f.Name, f.Size, f.MimeType, f.StoragePath, f.Hash, f.FolderID, f.Description, string(tagsJSON), f.Status, f.Indexed, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return semerr.Newf(semerr.KindNotFound, "file not found: %s", f.ID)
	}
	return nil
}

// DeleteFile removes a file record by ID.
func (s *SQLiteStorage) DeleteFile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return err
}

// ListFiles returns file records matching the filter, newest first.
func (s *SQLiteStorage) ListFiles(ctx context.Context, filter models.ListFilter) ([]*models.File, error) {
	query := `SELECT id, owner_id, name, size, mime_type, storage_path, hash, folder_id, description, tags, status, indexed, created_at, updated_at FROM files`
	var conds []string
	var args []interface{}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.FolderID != "" {
		conds = append(conds, "folder_id = ?")
		args = append(args, filter.FolderID)
	}
	if filter.MimeType != "" {
		conds = append(conds, "mime_type = ?")
		args = append(args, filter.MimeType)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FindByHash returns the first file an owner has with the given content hash,
// or nil when none exists. Used for duplicate detection on upload.
func (s *SQLiteStorage) FindByHash(ctx context.Context, ownerID, hash string) (*models.File, error) {
	if hash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, size, mime_type, storage_path, hash, folder_id, description, tags, status, indexed, created_at, updated_at
		 FROM files WHERE owner_id = ? AND hash = ? LIMIT 1`, ownerID, hash)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CountFiles returns the number of files owned by ownerID, or all files when
// ownerID is empty.
func (s *SQLiteStorage) CountFiles(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	var err error
	if ownerID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE owner_id = ?`, ownerID).Scan(&count)
	}
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*models.File, error) {
	var f models.File
	var tagsJSON string
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Size, &f.MimeType, &f.StoragePath,
		&f.Hash, &f.FolderID, &f.Description, &tagsJSON, &f.Status, &f.Indexed,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &f.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &f, nil
}
