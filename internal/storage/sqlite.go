package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// isoLayout matches the millisecond ISO-8601 form browsers emit for created_at.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Store wraps a SQLite database holding the workspaces collection.
type Store struct {
	db *sql.DB
}

// Open opens the workspaces database in dataDir, creating both as needed,
// and brings its schema up to date. dataDir ":memory:" gives a private
// in-memory database.
func Open(dataDir string) (*Store, error) {
	file := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		file = filepath.Join(dataDir, "healthdesk.db")
	}

	// busy_timeout and WAL are applied by the driver on every connection.
	db, err := sql.Open("sqlite", "file:"+file+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; an in-memory database also lives only as long as its
	// single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// schemaVersion is the number of the last migration applied, kept in
// SQLite's user_version header field.
func (s *Store) schemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// migrate applies, in file order, every embedded migration numbered above
// the current schema version. Each runs in its own transaction together
// with the version bump.
func (s *Store) migrate() error {
	current, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	slices.Sort(files)

	for _, f := range files {
		var version int
		if _, err := fmt.Sscanf(path.Base(f), "%d_", &version); err != nil {
			return fmt.Errorf("migration %s: bad file name: %w", f, err)
		}
		if version <= current {
			continue
		}
		script, err := migrationsFS.ReadFile(f)
		if err != nil {
			return err
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		// PRAGMA does not take bind parameters; version is an int.
		if _, err := tx.Exec(string(script) + fmt.Sprintf(";\nPRAGMA user_version = %d;", version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %s: %w", f, err)
		}
		current = version
	}
	return nil
}

// --- Workspaces ---

// AddWorkspace inserts a document and returns its generated DocID.
// CreatedAt defaults to now when zero.
func (s *Store) AddWorkspace(ctx context.Context, doc WorkspaceDoc) (string, error) {
	if doc.DocID == "" {
		doc.DocID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (doc_id, workspace_id, user_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		doc.DocID, doc.WorkspaceID, doc.OwnerID, doc.Name,
		doc.CreatedAt.UTC().Format(isoLayout),
	)
	if err != nil {
		return "", err
	}
	return doc.DocID, nil
}

func (s *Store) GetWorkspace(ctx context.Context, docID string) (WorkspaceDoc, error) {
	var d WorkspaceDoc
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, workspace_id, user_id, name, created_at
		FROM workspaces WHERE doc_id = ?`, docID,
	).Scan(&d.DocID, &d.WorkspaceID, &d.OwnerID, &d.Name, &createdAt)
	if err == sql.ErrNoRows {
		return WorkspaceDoc{}, ErrNotFound
	}
	if err != nil {
		return WorkspaceDoc{}, err
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return WorkspaceDoc{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return d, nil
}

// ListWorkspaces returns every document whose user_id equals ownerID,
// oldest first.
func (s *Store) ListWorkspaces(ctx context.Context, ownerID string) ([]WorkspaceDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, workspace_id, user_id, name, created_at
		FROM workspaces WHERE user_id = ?
		ORDER BY created_at ASC, doc_id ASC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WorkspaceDoc
	for rows.Next() {
		var d WorkspaceDoc
		var createdAt string
		if err := rows.Scan(&d.DocID, &d.WorkspaceID, &d.OwnerID, &d.Name, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", d.DocID, err)
		}
		d.CreatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}

func (s *Store) DeleteWorkspace(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE doc_id = ?`, docID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
