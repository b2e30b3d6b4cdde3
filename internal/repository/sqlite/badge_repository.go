package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"badgeserver/internal/models"
	"badgeserver/internal/repository"

	"github.com/mattn/go-sqlite3"
)

// BadgeRepository implements repository.BadgeRepository for SQLite.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new SQLite badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

const badgeColumns = `
	unique_id, name, mac_address, firmware, firmware_hash,
	selected_image_label, selected_image, selected_image_mime_type,
	selected_image_font, selected_image_color, selected_font_size,
	selected_text_x, selected_text_y, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBadge(row rowScanner) (*models.Badge, error) {
	var (
		b                        models.Badge
		mac, hash                sql.NullString
		label, mime, font, color sql.NullString
		fontSize, textX, textY   sql.NullInt64
		selectedImage            []byte
	)

	err := row.Scan(&b.UniqueID, &b.Name, &mac, &b.Firmware, &hash,
		&label, &selectedImage, &mime, &font, &color, &fontSize,
		&textX, &textY, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.MACAddress = mac.String
	b.FirmwareHash = hash.String
	if label.Valid {
		b.Selection = &models.Selection{
			ImageLabel: label.String,
			Image:      selectedImage,
			MimeType:   mime.String,
			Font:       font.String,
			Color:      color.String,
			FontSize:   int(fontSize.Int64),
			TextX:      nullIntPtr(textX),
			TextY:      nullIntPtr(textY),
		}
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func intPtrValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Upsert inserts a badge or updates its name and MAC address.
func (r *BadgeRepository) Upsert(badge *models.Badge) (models.UpsertResult, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM badges WHERE unique_id = ?`, badge.UniqueID).Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check badge: %w", err)
	}

	result := models.BadgeCreated
	if exists > 0 {
		result = models.BadgeUpdated
		_, err = tx.Exec(`
			UPDATE badges SET name = ?, mac_address = ?, updated_at = ?
			WHERE unique_id = ?
		`, badge.Name, nullString(badge.MACAddress), time.Now().UTC(), badge.UniqueID)
	} else {
		_, err = tx.Exec(`
			INSERT INTO badges (unique_id, name, mac_address, updated_at)
			VALUES (?, ?, ?, ?)
		`, badge.UniqueID, badge.Name, nullString(badge.MACAddress), time.Now().UTC())
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrDuplicateMAC
		}
		return "", fmt.Errorf("failed to save badge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit badge: %w", err)
	}
	return result, nil
}

// SaveRender stores a personalised image together with its firmware and,
// when item is not nil, queues it in the same transaction. A non-empty
// render.Name replaces the badge name. It returns false if the badge does
// not exist, in which case nothing is written.
func (r *BadgeRepository) SaveRender(uniqueID string, render *models.BadgeRender, item *models.WorkItem) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE badges SET
			name = COALESCE(NULLIF(?, ''), name),
			firmware = ?, firmware_hash = ?,
			selected_image_label = ?, selected_image = ?, selected_image_mime_type = ?,
			selected_image_font = ?, selected_image_color = ?, selected_font_size = ?,
			selected_text_x = ?, selected_text_y = ?, updated_at = ?
		WHERE unique_id = ?
	`, render.Name, render.Firmware, render.FirmwareHash,
		render.ImageLabel, render.Image, render.MimeType,
		render.Font, render.Color, render.FontSize,
		intPtrValue(render.TextX), intPtrValue(render.TextY), time.Now().UTC(),
		uniqueID)
	if err != nil {
		return false, fmt.Errorf("failed to save badge render: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save badge render: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if item != nil {
		if _, err := insertWorkItem(tx, item); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit badge render: %w", err)
	}
	return true, nil
}

// Unlock records that a badge may use a secret-coded gallery image.
func (r *BadgeRepository) Unlock(uniqueID, label string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`
		INSERT OR IGNORE INTO badge_unlocked_images (unique_id, image_label) VALUES (?, ?)
	`, uniqueID, label); err != nil {
		return fmt.Errorf("failed to unlock image: %w", err)
	}
	return nil
}

// GetByID retrieves a badge by its unique ID.
func (r *BadgeRepository) GetByID(uniqueID string) (*models.Badge, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	b, err := scanBadge(r.db.Conn().QueryRow(`SELECT `+badgeColumns+` FROM badges WHERE unique_id = ?`, uniqueID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return b, nil
}

// GetByMAC retrieves a badge by its normalised MAC address.
func (r *BadgeRepository) GetByMAC(mac string) (*models.Badge, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	b, err := scanBadge(r.db.Conn().QueryRow(`SELECT `+badgeColumns+` FROM badges WHERE mac_address = ?`, mac))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badge by mac: %w", err)
	}
	return b, nil
}

// List returns badges ordered by unique ID.
func (r *BadgeRepository) List(limit int) ([]models.Badge, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Conn().Query(`SELECT `+badgeColumns+` FROM badges ORDER BY unique_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query badges: %w", err)
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

// UnlockedLabels returns the secret-coded images a badge has unlocked.
func (r *BadgeRepository) UnlockedLabels(uniqueID string) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT image_label FROM badge_unlocked_images WHERE unique_id = ? ORDER BY image_label
	`, uniqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocked images: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan unlocked image: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// Delete removes a badge and its unlocked images.
func (r *BadgeRepository) Delete(uniqueID string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM badges WHERE unique_id = ?`, uniqueID)
	if err != nil {
		return false, fmt.Errorf("failed to delete badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete badge: %w", err)
	}
	return n > 0, nil
}
