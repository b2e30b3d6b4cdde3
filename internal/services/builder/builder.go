// Package builder produces flashable badge firmware from rendered images.
package builder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	"badgeserver/internal/firmware"
	"badgeserver/internal/pixel"
)

// GenerationError is returned for every failure while building firmware.
// It unwraps to the underlying codec, patcher or I/O error.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("firmware generation failed: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Firmware is a patched binary ready to be stored for a badge.
type Firmware struct {
	Binary     []byte
	Hash       string
	Image      firmware.Region
	HashRegion *firmware.Region
}

// Builder patches a cached firmware template. It is safe for concurrent use.
type Builder struct {
	templatePath string

	once    sync.Once
	patcher *firmware.Patcher
	loadErr error
}

// NewBuilder creates a Builder reading its template from templatePath on first use.
func NewBuilder(templatePath string) *Builder {
	return &Builder{templatePath: templatePath}
}

// NewBuilderFromTemplate creates a Builder around an in-memory template.
func NewBuilderFromTemplate(template []byte) *Builder {
	b := &Builder{patcher: firmware.NewPatcher(template)}
	b.once.Do(func() {})
	return b
}

func (b *Builder) load() (*firmware.Patcher, error) {
	b.once.Do(func() {
		data, err := os.ReadFile(b.templatePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				b.loadErr = &GenerationError{Op: "load template", Err: fmt.Errorf("firmware image not found at %s", b.templatePath)}
			} else {
				b.loadErr = &GenerationError{Op: "load template", Err: fmt.Errorf("unable to read firmware image at %s: %w", b.templatePath, err)}
			}
			return
		}
		b.patcher = firmware.NewPatcher(data)
	})
	return b.patcher, b.loadErr
}

// Check loads the template and confirms its image slot fits the display.
func (b *Builder) Check() error {
	p, err := b.load()
	if err != nil {
		return err
	}
	size, err := p.ImageSize()
	if err != nil {
		return &GenerationError{Op: "inspect template", Err: err}
	}
	if expected := pixel.Size(pixel.TargetWidth, pixel.TargetHeight); size != expected {
		return &GenerationError{Op: "inspect template", Err: &firmware.SizeMismatchError{Expected: size, Actual: expected}}
	}
	return nil
}

// Build converts a rendered image to display pixels and patches it into the template.
func (b *Builder) Build(imageBytes []byte) (*Firmware, error) {
	buf, err := pixel.Encode(imageBytes, pixel.TargetWidth, pixel.TargetHeight)
	if err != nil {
		return nil, &GenerationError{Op: "encode image", Err: err}
	}
	if buf.Width != pixel.TargetWidth || buf.Height != pixel.TargetHeight {
		return nil, &GenerationError{Op: "encode image", Err: fmt.Errorf("rendered image must be %dx%d pixels; got %dx%d",
			pixel.TargetWidth, pixel.TargetHeight, buf.Width, buf.Height)}
	}

	p, err := b.load()
	if err != nil {
		return nil, err
	}

	result, err := p.Patch(buf.Data)
	if err != nil {
		return nil, &GenerationError{Op: "patch firmware", Err: err}
	}

	return &Firmware{
		Binary:     result.Firmware,
		Hash:       result.HashHex(),
		Image:      result.Image,
		HashRegion: result.Hash,
	}, nil
}

// BuildBase64 is Build for a base64-encoded image.
func (b *Builder) BuildBase64(imageBase64 string) (*Firmware, error) {
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, &GenerationError{Op: "decode payload", Err: fmt.Errorf("rendered image payload is not valid base64: %w", err)}
	}
	return b.Build(data)
}
