package sqlite

import (
	"database/sql"
	"fmt"

	"badgeserver/internal/models"
)

// GalleryRepository implements repository.GalleryRepository for SQLite.
type GalleryRepository struct {
	db *DB
}

// NewGalleryRepository creates a new SQLite gallery repository.
func NewGalleryRepository(db *DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

const galleryColumns = `id, label, data, mime_type, color, font, secret_code, requires_secret_code, display_order`

func scanGalleryImage(row rowScanner) (*models.GalleryImage, error) {
	var img models.GalleryImage
	err := row.Scan(&img.ID, &img.Label, &img.Data, &img.MimeType, &img.Color, &img.Font,
		&img.SecretCode, &img.RequiresSecretCode, &img.DisplayOrder)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Store inserts a gallery image or replaces the one with the same label.
// It reports whether a new row was created.
func (r *GalleryRepository) Store(img *models.GalleryImage) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM gallery_images WHERE label = ?`, img.Label).Scan(&id)
	created := err == sql.ErrNoRows
	if err != nil && !created {
		return false, fmt.Errorf("failed to check gallery image: %w", err)
	}

	if created {
		result, err := tx.Exec(`
			INSERT INTO gallery_images (label, data, mime_type, color, font, secret_code, requires_secret_code, display_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, img.Label, img.Data, img.MimeType, img.Color, img.Font, img.SecretCode, img.RequiresSecretCode, img.DisplayOrder)
		if err != nil {
			return false, fmt.Errorf("failed to insert gallery image: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return false, fmt.Errorf("failed to insert gallery image: %w", err)
		}
	} else {
		if _, err := tx.Exec(`
			UPDATE gallery_images SET data = ?, mime_type = ?, color = ?, font = ?,
				secret_code = ?, requires_secret_code = ?, display_order = ?
			WHERE id = ?
		`, img.Data, img.MimeType, img.Color, img.Font, img.SecretCode, img.RequiresSecretCode, img.DisplayOrder, id); err != nil {
			return false, fmt.Errorf("failed to update gallery image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit gallery image: %w", err)
	}
	img.ID = id
	return created, nil
}

// Update changes the settings of an existing image without touching its data.
func (r *GalleryRepository) Update(img *models.GalleryImage) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE gallery_images SET color = ?, font = ?, secret_code = ?,
			requires_secret_code = ?, display_order = ?
		WHERE label = ?
	`, img.Color, img.Font, img.SecretCode, img.RequiresSecretCode, img.DisplayOrder, img.Label)
	if err != nil {
		return false, fmt.Errorf("failed to update gallery image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update gallery image: %w", err)
	}
	return n > 0, nil
}

// GetByLabel retrieves a gallery image by its label.
func (r *GalleryRepository) GetByLabel(label string) (*models.GalleryImage, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	img, err := scanGalleryImage(r.db.Conn().QueryRow(`SELECT `+galleryColumns+` FROM gallery_images WHERE label = ?`, label))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery image: %w", err)
	}
	return img, nil
}

// List returns all gallery images in display order.
func (r *GalleryRepository) List() ([]models.GalleryImage, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT ` + galleryColumns + ` FROM gallery_images ORDER BY display_order ASC, label ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gallery images: %w", err)
	}
	defer rows.Close()

	var images []models.GalleryImage
	for rows.Next() {
		img, err := scanGalleryImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// Delete removes a gallery image by label.
func (r *GalleryRepository) Delete(label string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM gallery_images WHERE label = ?`, label)
	if err != nil {
		return false, fmt.Errorf("failed to delete gallery image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete gallery image: %w", err)
	}
	return n > 0, nil
}
