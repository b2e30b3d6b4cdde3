package models

import "time"

// WorkItem is a pending personalisation job for badge operators.
type WorkItem struct {
	ID           int64      `json:"id"`
	Token        string     `json:"token"`
	UniqueID     string     `json:"unique_id"`
	Name         string     `json:"name"`
	ImageLabel   string     `json:"image_label"`
	Image        []byte     `json:"-"`
	MimeType     string     `json:"image_mime_type"`
	FirmwareHash string     `json:"firmware_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
}

// Processed reports whether an operator has handled the item.
func (w *WorkItem) Processed() bool {
	return w.ProcessedAt != nil
}

// MarkResult is the outcome of marking a work item processed.
type MarkResult string

const (
	WorkMarked           MarkResult = "marked"
	WorkAlreadyProcessed MarkResult = "already_processed"
	WorkNotFound         MarkResult = "not_found"
)
