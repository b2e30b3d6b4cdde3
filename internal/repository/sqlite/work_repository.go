package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"badgeserver/internal/models"
)

// WorkQueueRepository implements repository.WorkQueueRepository for SQLite.
type WorkQueueRepository struct {
	db *DB
}

// NewWorkQueueRepository creates a new SQLite work queue repository.
func NewWorkQueueRepository(db *DB) *WorkQueueRepository {
	return &WorkQueueRepository{db: db}
}

const workColumns = `id, token, unique_id, name, image_label, image, mime_type, firmware_hash, created_at, processed_at`

func scanWorkItem(row rowScanner) (*models.WorkItem, error) {
	var (
		w         models.WorkItem
		processed sql.NullTime
	)
	err := row.Scan(&w.ID, &w.Token, &w.UniqueID, &w.Name, &w.ImageLabel, &w.Image,
		&w.MimeType, &w.FirmwareHash, &w.CreatedAt, &processed)
	if err != nil {
		return nil, err
	}
	if processed.Valid {
		t := processed.Time
		w.ProcessedAt = &t
	}
	return &w, nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertWorkItem(ex execer, item *models.WorkItem) (int64, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	result, err := ex.Exec(`
		INSERT INTO work_queue (token, unique_id, name, image_label, image, mime_type, firmware_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Token, item.UniqueID, item.Name, item.ImageLabel, item.Image, item.MimeType, item.FirmwareHash, item.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue work item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue work item: %w", err)
	}
	item.ID = id
	return id, nil
}

// Enqueue adds a work item. CreatedAt defaults to now.
func (r *WorkQueueRepository) Enqueue(item *models.WorkItem) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	return insertWorkItem(r.db.Conn(), item)
}

// List returns work items newest first.
func (r *WorkQueueRepository) List(includeProcessed bool, limit int) ([]models.WorkItem, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT ` + workColumns + ` FROM work_queue WHERE 1=1`
	if !includeProcessed {
		query += " AND processed_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id DESC"

	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

// GetByToken retrieves a work item by its public token.
func (r *WorkQueueRepository) GetByToken(token string) (*models.WorkItem, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	w, err := scanWorkItem(r.db.Conn().QueryRow(`SELECT `+workColumns+` FROM work_queue WHERE token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return w, nil
}

// MarkProcessed stamps a work item as handled.
func (r *WorkQueueRepository) MarkProcessed(id int64) (models.MarkResult, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var processed sql.NullTime
	err = tx.QueryRow(`SELECT processed_at FROM work_queue WHERE id = ?`, id).Scan(&processed)
	if err == sql.ErrNoRows {
		return models.WorkNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get work item: %w", err)
	}
	if processed.Valid {
		return models.WorkAlreadyProcessed, nil
	}

	if _, err := tx.Exec(`UPDATE work_queue SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return "", fmt.Errorf("failed to mark work item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit work item: %w", err)
	}
	return models.WorkMarked, nil
}

// ClaimOldest marks the oldest unprocessed item as processed and returns it.
// It returns nil when the queue is empty.
func (r *WorkQueueRepository) ClaimOldest() (*models.WorkItem, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := scanWorkItem(tx.QueryRow(`
		SELECT ` + workColumns + ` FROM work_queue
		WHERE processed_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE work_queue SET processed_at = ? WHERE id = ?`, now, w.ID); err != nil {
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit work item: %w", err)
	}

	w.ProcessedAt = &now
	return w, nil
}

// Delete removes a work item.
func (r *WorkQueueRepository) Delete(id int64) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM work_queue WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete work item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete work item: %w", err)
	}
	return n > 0, nil
}
