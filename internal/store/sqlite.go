// Package store holds the persistent backends: SQLite for the printer
// directory and job status table, Redis for the job queue.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS printers (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL,
	port        INTEGER NOT NULL DEFAULT 9100,
	description TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL DEFAULT 'kitchen',
	business_id TEXT NOT NULL DEFAULT '',
	is_enabled  INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_printers_business_role ON printers (business_id, role);
CREATE TABLE IF NOT EXISTS print_job_status (
	job_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

type SQLite struct {
	db *sqlx.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertPrinter inserts or replaces a printer record.
func (s *SQLite) UpsertPrinter(ctx context.Context, p model.Printer) error {
	if p.Port == 0 {
		p.Port = model.DefaultPrinterPort
	}
	const q = `
		INSERT INTO printers (id, name, ip, port, description, role, business_id, is_enabled)
		VALUES (:id, :name, :ip, :port, :description, :role, :business_id, :is_enabled)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, ip = excluded.ip, port = excluded.port,
			description = excluded.description, role = excluded.role,
			business_id = excluded.business_id, is_enabled = excluded.is_enabled`
	if _, err := s.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("failed to upsert printer %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLite) ResolvePrinter(ctx context.Context, printerID string) (model.PrinterTarget, error) {
	var p model.Printer
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, ip, port, description, role, business_id, is_enabled
		FROM printers WHERE id = ? AND is_enabled = 1`, printerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrinterTarget{}, fmt.Errorf("%w: %s", model.ErrPrinterNotFound, printerID)
	}
	if err != nil {
		return model.PrinterTarget{}, fmt.Errorf("failed to query printer %s: %w", printerID, err)
	}
	return p.Target()
}

func (s *SQLite) ResolveAccountPrinter(ctx context.Context, businessID string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `
		SELECT id FROM printers
		WHERE business_id = ? AND role = ? AND is_enabled = 1
		ORDER BY id LIMIT 1`, businessID, model.RoleAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", model.ErrNoAccountPrinter, businessID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query account printer for %s: %w", businessID, err)
	}
	return id, nil
}

// SetJobStatus writes a job's final status once. A second write returns
// ErrStatusAlreadySet and leaves the first one in place.
func (s *SQLite) SetJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO print_job_status (job_id, status, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING`, jobID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record status for job %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", model.ErrStatusAlreadySet, jobID)
	}
	return nil
}

func (s *SQLite) JobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	var status model.JobStatus
	err := s.db.GetContext(ctx, &status, `SELECT status FROM print_job_status WHERE job_id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobPending, nil
	}
	return status, err
}
