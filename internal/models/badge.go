package models

import "time"

// Field limits shared by the public and admin surfaces.
const (
	MaxBadgeIDLength    = 64
	MaxBadgeNameLength  = 64
	MaxImageLabelLength = 64
	MaxSecretCodeLength = 64

	MinFontSize     = 1
	MaxFontSize     = 128
	DefaultFontSize = 16
)

// Badge represents a registered attendee badge.
type Badge struct {
	UniqueID   string    `json:"unique_id"`
	Name       string    `json:"name"`
	MACAddress string    `json:"mac_address,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`

	Firmware     []byte     `json:"-"`
	FirmwareHash string     `json:"firmware_hash,omitempty"`
	Selection    *Selection `json:"selection,omitempty"`
}

// Selection is the personalisation most recently saved for a badge.
type Selection struct {
	ImageLabel string `json:"image_label"`
	Image      []byte `json:"-"`
	MimeType   string `json:"image_mime_type"`
	Font       string `json:"image_font"`
	Color      string `json:"image_color"`
	FontSize   int    `json:"font_size"`
	TextX      *int   `json:"text_x,omitempty"`
	TextY      *int   `json:"text_y,omitempty"`
}

// BadgeRender is everything written when a personalisation succeeds.
// An empty Name leaves the stored name unchanged.
type BadgeRender struct {
	Selection
	Name         string
	Firmware     []byte
	FirmwareHash string
}

// UpsertResult reports whether Upsert inserted or modified a badge.
type UpsertResult string

const (
	BadgeCreated UpsertResult = "created"
	BadgeUpdated UpsertResult = "updated"
)
