package services

import (
	"fmt"

	"badgeserver/internal/logger"
	"badgeserver/internal/models"
	"badgeserver/internal/repository"
	"badgeserver/internal/services/websocket"
)

// DefaultQueueLimit bounds queue listings when the caller gives no limit.
const DefaultQueueLimit = 100

// Queue wraps the work queue repository and notifies admin viewers of changes.
type Queue struct {
	repo   repository.WorkQueueRepository
	events EventPublisher
	logger *logger.Logger
}

func NewQueue(repo repository.WorkQueueRepository, events EventPublisher, logger *logger.Logger) *Queue {
	return &Queue{repo: repo, events: events, logger: logger}
}

// List returns queued items, newest first.
func (q *Queue) List(includeProcessed bool, limit int) ([]models.WorkItem, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	items, err := q.repo.List(includeProcessed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list work queue: %w", err)
	}
	return items, nil
}

// MarkProcessed flags an item as handled by an operator.
func (q *Queue) MarkProcessed(id int64) (models.MarkResult, error) {
	result, err := q.repo.MarkProcessed(id)
	if err != nil {
		return "", fmt.Errorf("failed to mark work item %d: %w", id, err)
	}
	if result == models.WorkMarked {
		q.events.Publish(websocket.Event{Type: websocket.EventProcessed, ID: id})
		q.logger.Info("Work item %d marked processed", id)
	}
	return result, nil
}

// Claim hands the oldest pending item to an operator and marks it processed.
// It returns nil when the queue is empty.
func (q *Queue) Claim() (*models.WorkItem, error) {
	item, err := q.repo.ClaimOldest()
	if err != nil {
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}
	if item != nil {
		q.events.Publish(websocket.Event{
			Type:         websocket.EventProcessed,
			ID:           item.ID,
			UniqueID:     item.UniqueID,
			Name:         item.Name,
			ImageLabel:   item.ImageLabel,
			FirmwareHash: item.FirmwareHash,
		})
		q.logger.Info("Work item %d claimed for badge %s", item.ID, item.UniqueID)
	}
	return item, nil
}

// Delete removes an item. It reports false when no item had that id.
func (q *Queue) Delete(id int64) (bool, error) {
	deleted, err := q.repo.Delete(id)
	if err != nil {
		return false, fmt.Errorf("failed to delete work item %d: %w", id, err)
	}
	if deleted {
		q.events.Publish(websocket.Event{Type: websocket.EventDeleted, ID: id})
		q.logger.Info("Work item %d deleted", id)
	}
	return deleted, nil
}
