package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/viztrail"
	"github.com/dshills/vizier/pkg/workflow"
)

// SQLiteViztrailStore keeps viztrails and workflow versions in a SQLite
// database. Records are stored as JSON documents alongside the columns
// used for lookups.
type SQLiteViztrailStore struct {
	db *sql.DB
}

// NewSQLiteViztrailStore opens (or creates) the database at dbPath and
// applies pending migrations.
func NewSQLiteViztrailStore(dbPath string) (*SQLiteViztrailStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteViztrailStore{db: db}, nil
}

var _ ViztrailStore = (*SQLiteViztrailStore)(nil)

// Close closes the database connection.
func (s *SQLiteViztrailStore) Close() error {
	return s.db.Close()
}

// SaveViztrail inserts or replaces a viztrail record.
func (s *SQLiteViztrailStore) SaveViztrail(ctx context.Context, vt *viztrail.Viztrail) error {
	if vt == nil || vt.ID.IsZero() {
		return fmt.Errorf("viztrail must have an ID")
	}
	data, err := json.Marshal(vt)
	if err != nil {
		return fmt.Errorf("failed to marshal viztrail: %w", err)
	}

	query := `
	INSERT INTO viztrails (id, env_id, data, created_at, last_modified_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		env_id = excluded.env_id,
		data = excluded.data,
		last_modified_at = excluded.last_modified_at`

	if _, err := s.db.ExecContext(ctx, query,
		string(vt.ID), vt.EnvID, string(data), vt.CreatedAt, vt.LastModifiedAt,
	); err != nil {
		return fmt.Errorf("failed to save viztrail: %w", err)
	}
	return nil
}

// LoadViztrail reads a viztrail record.
func (s *SQLiteViztrailStore) LoadViztrail(ctx context.Context, id types.ViztrailID) (*viztrail.Viztrail, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM viztrails WHERE id = ?", string(id)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("viztrail %s: %w", id, verrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load viztrail: %w", err)
	}
	return decodeViztrail(data)
}

// ListViztrails returns all viztrails ordered by creation time.
func (s *SQLiteViztrailStore) ListViztrails(ctx context.Context) ([]*viztrail.Viztrail, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM viztrails ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query viztrails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*viztrail.Viztrail, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan viztrail: %w", err)
		}
		vt, err := decodeViztrail(data)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viztrails: %w", err)
	}
	return out, nil
}

// DeleteViztrail removes a viztrail and its workflow versions in one
// transaction. Foreign key enforcement is off by default in SQLite, so the
// workflows are deleted explicitly.
func (s *SQLiteViztrailStore) DeleteViztrail(ctx context.Context, id types.ViztrailID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM workflows WHERE viztrail_id = ?", string(id)); err != nil {
		return false, fmt.Errorf("failed to delete workflows: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM viztrails WHERE id = ?", string(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete viztrail: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected > 0, nil
}

// SaveWorkflow inserts a workflow version. Existing versions are never
// overwritten.
func (s *SQLiteViztrailStore) SaveWorkflow(ctx context.Context, id types.ViztrailID, wf *workflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	query := `
	INSERT INTO workflows (viztrail_id, branch_id, version, created_at, has_error, data)
	VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query,
		string(id), string(wf.BranchID), int64(wf.Version), wf.CreatedAt, wf.HasError(), string(data),
	); err != nil {
		return fmt.Errorf("failed to save workflow version %d: %w", wf.Version, err)
	}
	return nil
}

// LoadWorkflow reads a workflow version.
func (s *SQLiteViztrailStore) LoadWorkflow(ctx context.Context, id types.ViztrailID, version types.Version) (*workflow.Workflow, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM workflows WHERE viztrail_id = ? AND version = ?",
		string(id), int64(version),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s@%d: %w", id, version, verrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(data), &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	for _, m := range wf.Modules {
		if m.Datasets == nil {
			m.Datasets = make(map[string]types.DatasetID)
		}
	}
	return &wf, nil
}

// DeleteWorkflows removes the versions of a branch.
func (s *SQLiteViztrailStore) DeleteWorkflows(ctx context.Context, id types.ViztrailID, branch types.BranchID) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM workflows WHERE viztrail_id = ? AND branch_id = ?",
		string(id), string(branch),
	); err != nil {
		return fmt.Errorf("failed to delete workflows: %w", err)
	}
	return nil
}

func decodeViztrail(data string) (*viztrail.Viztrail, error) {
	var vt viztrail.Viztrail
	if err := json.Unmarshal([]byte(data), &vt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal viztrail: %w", err)
	}
	if vt.Branches == nil {
		vt.Branches = make(map[types.BranchID]*viztrail.Branch)
	}
	return &vt, nil
}
