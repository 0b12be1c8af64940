package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pingvi/pingvi/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var completedAt sql.NullTime

	err := scanner.Scan(&b.ID, &b.Filename, &b.Status, &b.SizeBytes, &b.Error, &b.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

const backupCols = `id, filename, status, size_bytes, error, created_at, completed_at`

func (s *BackupStore) Create(filename string) (*model.Backup, error) {
	result, err := s.db.Exec(`INSERT INTO backups (filename) VALUES (?)`, filename)
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) MarkCompleted(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.BackupCompleted, sizeBytes, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(id int64, errorMsg string) error {
	_, err := s.db.Exec(`UPDATE backups SET status = ?, error = ? WHERE id = ?`, model.BackupFailed, errorMsg, id)
	if err != nil {
		return fmt.Errorf("mark backup failed: %w", err)
	}
	return nil
}

// LatestCompleted returns the most recent completed backup, or nil.
func (s *BackupStore) LatestCompleted() (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT ` + backupCols + ` FROM backups WHERE status = 'completed' ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return b, nil
}

// DeleteOlderThan removes backup records created before the cutoff and
// returns their filenames so the caller can unlink the files.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT id, filename FROM backups WHERE created_at < ?`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("list old backups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var filenames []string
	for rows.Next() {
		var id int64
		var filename string
		if err := rows.Scan(&id, &filename); err != nil {
			return nil, fmt.Errorf("scan old backup: %w", err)
		}
		ids = append(ids, id)
		filenames = append(filenames, filename)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate old backups: %w", err)
	}

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete old backup: %w", err)
		}
	}
	return filenames, nil
}
