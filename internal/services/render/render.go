// Package render draws attendee names onto gallery images.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"badgeserver/internal/models"
)

const (
	// DefaultLocation is used for unknown location names.
	DefaultLocation = "center"

	padding = 12
)

// Locations lists the named text positions.
var Locations = []string{
	"top", "top-left", "top-right",
	"center", "center-left", "center-right",
	"bottom", "bottom-left", "bottom-right",
}

// FontExtensions are the font files picked up from the fonts directory.
var FontExtensions = []string{".ttf", ".ttc", ".otf"}

// Options control how a name is drawn.
type Options struct {
	Name     string
	Font     string
	FontSize int
	Color    string
	// Location is a name from Locations or explicit "x,y" pixel coordinates.
	Location string
}

// Renderer loads fonts from a directory and caches parsed faces.
type Renderer struct {
	fontsDir    string
	defaultFont string

	mu    sync.Mutex
	fonts map[string]*opentype.Font
}

// NewRenderer creates a Renderer reading fonts from fontsDir.
func NewRenderer(fontsDir, defaultFont string) *Renderer {
	return &Renderer{
		fontsDir:    fontsDir,
		defaultFont: defaultFont,
		fonts:       make(map[string]*opentype.Font),
	}
}

// Render draws opts.Name on the image and returns it encoded as PNG.
func (r *Renderer) Render(imageBytes []byte, opts Options) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	canvas := straightCopy(src)

	size := opts.FontSize
	if size < models.MinFontSize || size > models.MaxFontSize {
		size = models.DefaultFontSize
	}

	face, err := r.face(opts.Font, float64(size))
	if err != nil {
		return nil, err
	}
	defer face.Close()

	bounds, _ := font.BoundString(face, opts.Name)
	left, top := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	textW, textH := bounds.Max.X.Ceil()-left, bounds.Max.Y.Ceil()-top

	x, y, err := Position(opts.Location, canvas.Bounds().Size(), image.Pt(textW, textH))
	if err != nil {
		return nil, err
	}

	fill := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if strings.EqualFold(opts.Color, models.ColorBlack) {
		fill = color.RGBA{A: 255}
	}

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  fixed.P(x-left, y-top),
	}
	drawer.DrawString(opts.Name)

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), nil
}

// straightCopy copies src into a non-premultiplied canvas at the origin.
// Transparent pixels keep their colour.
func straightCopy(src image.Image) *image.NRGBA {
	b := src.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			canvas.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return canvas
}

// Position returns the top-left corner of a text box of size text inside
// an image of size img. Named locations are kept inside the image; explicit
// coordinates are only clamped to be non-negative.
func Position(location string, img, text image.Point) (int, int, error) {
	key := strings.ToLower(strings.TrimSpace(location))

	if xs, ys, ok := strings.Cut(key, ","); ok {
		x, errX := strconv.Atoi(strings.TrimSpace(xs))
		y, errY := strconv.Atoi(strings.TrimSpace(ys))
		if errX != nil || errY != nil {
			return 0, 0, fmt.Errorf("custom coordinates must be in 'x,y' format: %q", location)
		}
		return max(0, x), max(0, y), nil
	}

	name := DefaultLocation
	for _, l := range Locations {
		if l == key {
			name = l
			break
		}
	}

	var x, y int
	switch {
	case strings.Contains(name, "top"):
		y = padding
	case strings.Contains(name, "bottom"):
		y = img.Y - text.Y - padding
	default:
		y = (img.Y - text.Y) / 2
	}
	switch {
	case strings.Contains(name, "left"):
		x = padding
	case strings.Contains(name, "right"):
		x = img.X - text.X - padding
	default:
		x = (img.X - text.X) / 2
	}

	x = max(0, min(max(img.X-text.X, 0), x))
	y = max(0, min(max(img.Y-text.Y, 0), y))
	return x, y, nil
}

func (r *Renderer) face(name string, size float64) (font.Face, error) {
	f, err := r.loadFont(name)
	if err != nil && name != r.defaultFont {
		f, err = r.loadFont(r.defaultFont)
	}
	if err != nil {
		// Wbudowany font Go, gdy katalog z fontami jest pusty
		f, err = r.loadFont("")
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load font %q: %w", name, err)
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// loadFont parses a font file from the fonts directory. The empty name
// selects the embedded Go Regular font.
func (r *Renderer) loadFont(name string) (*opentype.Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.fonts[name]; ok {
		return f, nil
	}

	var (
		f   *opentype.Font
		err error
	)
	if name == "" {
		f, err = opentype.Parse(goregular.TTF)
	} else {
		f, err = r.parseFile(name)
	}
	if err != nil {
		return nil, err
	}

	r.fonts[name] = f
	return f, nil
}

func (r *Renderer) parseFile(name string) (*opentype.Font, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid font name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(r.fontsDir, name))
	if err != nil {
		return nil, fmt.Errorf("font file %q not found in fonts directory: %w", name, err)
	}

	if strings.EqualFold(filepath.Ext(name), ".ttc") {
		collection, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		return collection.Font(0)
	}
	return opentype.Parse(data)
}

// FontChoices lists font files in dir sorted case-insensitively. The
// default font is always included.
func FontChoices(dir, defaultFont string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return []string{defaultFont}, fmt.Errorf("failed to read font directory %s: %w", dir, err)
	}

	var choices []string
	hasDefault := false
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !hasFontExtension(e.Name()) {
			continue
		}
		if e.Name() == defaultFont {
			hasDefault = true
		}
		choices = append(choices, e.Name())
	}

	sort.Slice(choices, func(i, j int) bool {
		return strings.ToLower(choices[i]) < strings.ToLower(choices[j])
	})
	if !hasDefault {
		choices = append([]string{defaultFont}, choices...)
	}
	return choices, nil
}

func hasFontExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range FontExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
