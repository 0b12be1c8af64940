// Package backup writes periodic encrypted snapshots of the SQLite database.
// Snapshots are taken with VACUUM INTO (a consistent copy even mid-traffic),
// encrypted with a passphrase-derived key, and recorded in the backups table.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pingvi/pingvi/internal/store"
)

// Config holds backup manager configuration. An empty Passphrase disables
// the manager entirely; a zero Key falls back to DefaultKeyParams.
type Config struct {
	Dir        string
	Passphrase string
	Interval   time.Duration
	Keep       int
	Key        KeyParams
}

type Manager struct {
	cfg    Config
	db     *sql.DB
	store  *store.BackupStore
	logger *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, db: db, store: bs, logger: logger}
}

// Enabled reports whether the manager is configured to run.
func (m *Manager) Enabled() bool {
	return m.cfg.Passphrase != ""
}

// Start runs the periodic backup loop until ctx is cancelled. Disabled
// managers return immediately.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup", "error", err)
				}
			}
		}
	}()
}

// RunNow takes one encrypted snapshot and returns the backup record id.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	if !m.Enabled() {
		return 0, fmt.Errorf("backup disabled: no passphrase configured")
	}
	if err := os.MkdirAll(m.cfg.Dir, 0700); err != nil {
		return 0, fmt.Errorf("create backup dir: %w", err)
	}

	filename := fmt.Sprintf("pingvi-%s.db.enc", time.Now().UTC().Format("20060102-150405"))
	record, err := m.store.Create(filename)
	if err != nil {
		return 0, err
	}

	plainPath := filepath.Join(m.cfg.Dir, filename+".tmp")
	encPath := filepath.Join(m.cfg.Dir, filename)
	defer os.Remove(plainPath)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, plainPath); err != nil {
		m.fail(record.ID, err)
		return 0, fmt.Errorf("snapshot db: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		m.fail(record.ID, err)
		return 0, err
	}
	if err := EncryptFile(plainPath, encPath, m.cfg.Passphrase, salt, m.cfg.Key); err != nil {
		m.fail(record.ID, err)
		return 0, err
	}

	info, err := os.Stat(encPath)
	if err != nil {
		m.fail(record.ID, err)
		return 0, fmt.Errorf("stat backup: %w", err)
	}

	if err := m.store.MarkCompleted(record.ID, info.Size()); err != nil {
		return 0, err
	}

	m.cleanup()
	m.logger.Info("backup completed", "file", filename, "size", info.Size())
	return record.ID, nil
}

// Restore decrypts the given backup record into dstPath.
func (m *Manager) Restore(backupID int64, dstPath string) error {
	record, err := m.store.GetByID(backupID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("restore: backup %d: %w", backupID, store.ErrNotFound)
	}
	return DecryptFile(filepath.Join(m.cfg.Dir, record.Filename), dstPath, m.cfg.Passphrase, m.cfg.Key)
}

// RestoreLatest decrypts the most recent completed backup into dstPath and
// returns its record id.
func (m *Manager) RestoreLatest(dstPath string) (int64, error) {
	record, err := m.store.LatestCompleted()
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, fmt.Errorf("restore: no completed backups: %w", store.ErrNotFound)
	}
	if err := DecryptFile(filepath.Join(m.cfg.Dir, record.Filename), dstPath, m.cfg.Passphrase, m.cfg.Key); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (m *Manager) fail(id int64, cause error) {
	if err := m.store.MarkFailed(id, cause.Error()); err != nil {
		m.logger.Error("mark backup failed", "error", err)
	}
}

func (m *Manager) cleanup() {
	keep := m.cfg.Keep
	if keep <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(keep) * 24 * time.Hour)
	filenames, err := m.store.DeleteOlderThan(cutoff)
	if err != nil {
		m.logger.Error("backup cleanup", "error", err)
		return
	}
	for _, name := range filenames {
		if err := os.Remove(filepath.Join(m.cfg.Dir, name)); err != nil && !os.IsNotExist(err) {
			m.logger.Error("remove old backup", "file", name, "error", err)
		}
	}
}
