package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"badgeserver/internal/logger"
	"badgeserver/internal/models"
	"badgeserver/internal/repository"
	"badgeserver/internal/services/builder"
	"badgeserver/internal/services/render"
	"badgeserver/internal/services/websocket"

	"github.com/google/uuid"
)

var (
	ErrBadgeNotFound  = errors.New("badge not found")
	ErrImageNotFound  = errors.New("please select a valid image")
	ErrSecretRequired = errors.New("this image requires a valid secret code")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const renderedMimeType = "image/png"

var (
	nameAllowed = regexp.MustCompile(`^[A-Za-z0-9 :.,!?"'_-]+$`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// ImageRenderer draws a name onto a gallery image.
type ImageRenderer interface {
	Render(imageBytes []byte, opts render.Options) ([]byte, error)
}

// FirmwareBuilder turns a rendered image into flashable firmware.
type FirmwareBuilder interface {
	Build(imageBytes []byte) (*builder.Firmware, error)
}

// EventPublisher receives queue events for admin viewers.
type EventPublisher interface {
	Publish(event websocket.Event)
}

// PersonalizeRequest is an attendee's badge selection.
type PersonalizeRequest struct {
	UniqueID     string
	ImageLabel   string
	FontSize     int
	TextX        *int
	TextY        *int
	OverrideName string
	SecretCode   string
}

// PersonalizeResult is returned after the firmware has been stored and queued.
type PersonalizeResult struct {
	UniqueID     string `json:"unique_id"`
	Name         string `json:"name"`
	ImageLabel   string `json:"image_label"`
	FirmwareHash string `json:"firmware_hash"`
	Token        string `json:"token"`
	WorkID       int64  `json:"work_id"`
}

// Profile is what an attendee sees for their badge.
type Profile struct {
	Badge  *models.Badge         `json:"badge"`
	Images []models.GalleryImage `json:"images"`
}

// Personalizer renders names onto gallery images and produces badge firmware.
type Personalizer struct {
	badges      repository.BadgeRepository
	gallery     repository.GalleryRepository
	renderer    ImageRenderer
	builder     FirmwareBuilder
	events      EventPublisher
	defaultFont string
	logger      *logger.Logger
}

func NewPersonalizer(badges repository.BadgeRepository, gallery repository.GalleryRepository,
	renderer ImageRenderer, fwBuilder FirmwareBuilder, events EventPublisher, defaultFont string, logger *logger.Logger) *Personalizer {
	return &Personalizer{
		badges:      badges,
		gallery:     gallery,
		renderer:    renderer,
		builder:     fwBuilder,
		events:      events,
		defaultFont: defaultFont,
		logger:      logger,
	}
}

// CleanName collapses runs of whitespace and trims the result.
func CleanName(name string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(name, " "))
}

// ValidateName checks an already cleaned display name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Field: "name", Message: "name cannot be blank"}
	case len(name) > models.MaxBadgeNameLength:
		return &ValidationError{Field: "name", Message: fmt.Sprintf("name must be %d characters or fewer", models.MaxBadgeNameLength)}
	case !nameAllowed.MatchString(name):
		return &ValidationError{Field: "name", Message: `name can only include letters, numbers, spaces, and basic punctuation (:.,!?"'-_)`}
	}
	return nil
}

// ClampFontSize maps out-of-range sizes into the supported range; zero means default.
func ClampFontSize(size int) int {
	if size == 0 {
		return models.DefaultFontSize
	}
	return max(models.MinFontSize, min(models.MaxFontSize, size))
}

func (p *Personalizer) loadBadge(uniqueID string) (*models.Badge, error) {
	uniqueID = strings.TrimSpace(uniqueID)
	if uniqueID == "" || len(uniqueID) > models.MaxBadgeIDLength {
		return nil, ErrBadgeNotFound
	}
	badge, err := p.badges.GetByID(uniqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge %s: %w", uniqueID, err)
	}
	if badge == nil {
		return nil, ErrBadgeNotFound
	}
	return badge, nil
}

// Profile returns the badge and the gallery images it may choose from.
// Locked images are listed only once the badge has unlocked them.
func (p *Personalizer) Profile(uniqueID string) (*Profile, error) {
	badge, err := p.loadBadge(uniqueID)
	if err != nil {
		return nil, err
	}

	images, err := p.gallery.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}
	unlocked, err := p.badges.UnlockedLabels(badge.UniqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked images: %w", err)
	}
	allowed := make(map[string]bool, len(unlocked))
	for _, label := range unlocked {
		allowed[label] = true
	}

	visible := make([]models.GalleryImage, 0, len(images))
	for _, img := range images {
		if img.Locked() && !allowed[img.Label] {
			continue
		}
		visible = append(visible, img)
	}

	return &Profile{Badge: badge, Images: visible}, nil
}

// resolveImage returns the selected gallery image, unlocking it when the
// submitted secret code matches.
func (p *Personalizer) resolveImage(badge *models.Badge, label, secret string) (*models.GalleryImage, error) {
	label = strings.TrimSpace(label)
	if label == "" || len(label) > models.MaxImageLabelLength {
		return nil, ErrImageNotFound
	}
	img, err := p.gallery.GetByLabel(label)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", label, err)
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	if !img.Locked() {
		return img, nil
	}

	unlocked, err := p.badges.UnlockedLabels(badge.UniqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked images: %w", err)
	}
	for _, l := range unlocked {
		if l == img.Label {
			return img, nil
		}
	}

	secret = strings.TrimSpace(secret)
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(img.SecretCode)) != 1 {
		return nil, ErrSecretRequired
	}
	if err := p.badges.Unlock(badge.UniqueID, img.Label); err != nil {
		return nil, fmt.Errorf("failed to unlock image %s: %w", img.Label, err)
	}
	p.logger.Info("Badge %s unlocked image %s", badge.UniqueID, img.Label)
	return img, nil
}

// Personalize renders the attendee name, builds firmware and queues the
// result. Nothing is written to the badge record unless the firmware build
// succeeded.
func (p *Personalizer) Personalize(req PersonalizeRequest) (*PersonalizeResult, error) {
	badge, err := p.loadBadge(req.UniqueID)
	if err != nil {
		return nil, err
	}

	img, err := p.resolveImage(badge, req.ImageLabel, req.SecretCode)
	if err != nil {
		return nil, err
	}

	name := CleanName(req.OverrideName)
	if name == "" {
		name = CleanName(badge.Name)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	fontSize := ClampFontSize(req.FontSize)
	textX, textY := clampCoordinate(req.TextX), clampCoordinate(req.TextY)
	location := render.DefaultLocation
	if textX != nil && textY != nil {
		location = strconv.Itoa(*textX) + "," + strconv.Itoa(*textY)
	}

	font := img.Font
	if font == "" {
		font = p.defaultFont
	}
	color := img.Color
	if color == "" {
		color = models.DefaultColor
	}

	rendered, err := p.renderer.Render(img.Data, render.Options{
		Name:     name,
		Font:     font,
		FontSize: fontSize,
		Color:    color,
		Location: location,
	})
	if err != nil {
		p.logger.Error("Failed to personalise image '%s' for %s: %v", img.Label, badge.UniqueID, err)
		return nil, fmt.Errorf("failed to personalise image: %w", err)
	}

	fw, err := p.builder.Build(rendered)
	if err != nil {
		p.logger.Error("Failed to generate firmware for %s: %v", badge.UniqueID, err)
		return nil, err
	}

	record := &models.BadgeRender{
		Selection: models.Selection{
			ImageLabel: img.Label,
			Image:      rendered,
			MimeType:   renderedMimeType,
			Font:       font,
			Color:      color,
			FontSize:   fontSize,
			TextX:      textX,
			TextY:      textY,
		},
		Firmware:     fw.Binary,
		FirmwareHash: fw.Hash,
	}
	if name != badge.Name {
		record.Name = name
	}

	item := &models.WorkItem{
		Token:        uuid.NewString(),
		UniqueID:     badge.UniqueID,
		Name:         name,
		ImageLabel:   img.Label,
		Image:        rendered,
		MimeType:     renderedMimeType,
		FirmwareHash: fw.Hash,
	}

	// Badge row and queue item are committed together.
	saved, err := p.badges.SaveRender(badge.UniqueID, record, item)
	if err != nil {
		return nil, fmt.Errorf("failed to store selection for badge %s: %w", badge.UniqueID, err)
	}
	if !saved {
		return nil, ErrBadgeNotFound
	}
	id := item.ID

	p.events.Publish(websocket.Event{
		Type:         websocket.EventEnqueued,
		ID:           id,
		UniqueID:     badge.UniqueID,
		Name:         name,
		ImageLabel:   img.Label,
		FirmwareHash: fw.Hash,
	})
	p.logger.Info("Badge %s personalised with '%s' (firmware %s)", badge.UniqueID, img.Label, fw.Hash)

	return &PersonalizeResult{
		UniqueID:     badge.UniqueID,
		Name:         name,
		ImageLabel:   img.Label,
		FirmwareHash: fw.Hash,
		Token:        item.Token,
		WorkID:       id,
	}, nil
}

func clampCoordinate(v *int) *int {
	if v == nil {
		return nil
	}
	c := max(*v, 0)
	return &c
}
