package backup

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pingvi/pingvi/internal/database"
	"github.com/pingvi/pingvi/internal/model"
	"github.com/pingvi/pingvi/internal/store"
)

func setupManagerTest(t *testing.T) (*Manager, *store.BackupStore, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	bs := store.NewBackupStore(db)
	mgr := NewManager(Config{
		Dir:        dir,
		Passphrase: "family-secret",
		Interval:   time.Hour,
		Keep:       7,
	}, db, bs, slog.Default())
	return mgr, bs, dir
}

func TestEnabled(t *testing.T) {
	mgr, _, _ := setupManagerTest(t)
	if !mgr.Enabled() {
		t.Error("manager with passphrase should be enabled")
	}

	disabled := NewManager(Config{}, nil, nil, slog.Default())
	if disabled.Enabled() {
		t.Error("manager without passphrase should be disabled")
	}
	if _, err := disabled.RunNow(context.Background()); err == nil {
		t.Error("RunNow on a disabled manager should fail")
	}
}

func TestRunNow(t *testing.T) {
	mgr, bs, dir := setupManagerTest(t)

	id, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	record, err := bs.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record == nil {
		t.Fatal("backup record missing")
	}
	if record.Status != model.BackupCompleted {
		t.Errorf("status = %q, want completed", record.Status)
	}
	if record.SizeBytes <= 0 {
		t.Errorf("size = %d, want > 0", record.SizeBytes)
	}

	encPath := filepath.Join(dir, record.Filename)
	data, err := os.ReadFile(encPath)
	if err != nil {
		t.Fatalf("read backup file: %v", err)
	}
	if bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("backup file is not encrypted")
	}

	// The plaintext temp file must be gone.
	if _, err := os.Stat(encPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("plaintext snapshot left on disk")
	}
}

func TestRestore(t *testing.T) {
	mgr, _, _ := setupManagerTest(t)

	id, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	dstPath := filepath.Join(t.TempDir(), "restored.db")
	if err := mgr.Restore(id, dstPath); err != nil {
		t.Fatalf("restore: %v", err)
	}

	data, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("read restored db: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("restored file is not a SQLite database")
	}

	if err := mgr.Restore(9999, dstPath); err == nil {
		t.Error("restoring an unknown backup should fail")
	}
}

func TestRestoreLatest(t *testing.T) {
	mgr, _, _ := setupManagerTest(t)

	dstPath := filepath.Join(t.TempDir(), "restored.db")
	if _, err := mgr.RestoreLatest(dstPath); err == nil {
		t.Error("restore with no completed backups should fail")
	}

	first, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	second, err := mgr.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup 2: %v", err)
	}

	id, err := mgr.RestoreLatest(dstPath)
	if err != nil {
		t.Fatalf("restore latest: %v", err)
	}
	if id != second || id == first {
		t.Errorf("restored backup %d, want latest %d", id, second)
	}

	data, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("read restored db: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("restored file is not a SQLite database")
	}
}
