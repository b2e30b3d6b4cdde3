package repository

import (
	"errors"

	"badgeserver/internal/models"
)

// ErrDuplicateMAC is returned when a MAC address is already assigned to another badge.
var ErrDuplicateMAC = errors.New("mac address is already assigned to another badge")

// BadgeRepository defines the interface for badge registry operations.
type BadgeRepository interface {
	// Create / update operations
	Upsert(badge *models.Badge) (models.UpsertResult, error)
	SaveRender(uniqueID string, render *models.BadgeRender, item *models.WorkItem) (bool, error)
	Unlock(uniqueID, label string) error

	// Read operations
	GetByID(uniqueID string) (*models.Badge, error)
	GetByMAC(mac string) (*models.Badge, error)
	List(limit int) ([]models.Badge, error)
	UnlockedLabels(uniqueID string) ([]string, error)

	// Delete operations
	Delete(uniqueID string) (bool, error)
}

// GalleryRepository defines the interface for gallery image operations.
type GalleryRepository interface {
	// Create / update operations
	Store(img *models.GalleryImage) (bool, error)
	Update(img *models.GalleryImage) (bool, error)

	// Read operations
	GetByLabel(label string) (*models.GalleryImage, error)
	List() ([]models.GalleryImage, error)

	// Delete operations
	Delete(label string) (bool, error)
}

// WorkQueueRepository defines the interface for the personalisation work queue.
type WorkQueueRepository interface {
	// Create operations
	Enqueue(item *models.WorkItem) (int64, error)

	// Read operations
	List(includeProcessed bool, limit int) ([]models.WorkItem, error)
	GetByToken(token string) (*models.WorkItem, error)

	// Update operations
	MarkProcessed(id int64) (models.MarkResult, error)
	ClaimOldest() (*models.WorkItem, error)

	// Delete operations
	Delete(id int64) (bool, error)
}
