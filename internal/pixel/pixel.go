// Package pixel converts bitmaps into the badge display's packed 1-bit format.
package pixel

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	// Decoders accepted for gallery uploads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// TargetWidth and TargetHeight are the badge display resolution.
	TargetWidth  = 240
	TargetHeight = 96

	// Threshold is the luminance cut-off. Values strictly above it are lit.
	Threshold = 128
)

// DecodeError is returned when the source bytes are not a decodable bitmap.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Buffer is a packed monochrome bitmap: rows top to bottom, leftmost pixel
// in the most significant bit, Stride bytes per row.
type Buffer struct {
	Data   []byte
	Width  int
	Height int
}

// Size returns the packed length of a width x height bitmap.
func Size(width, height int) int {
	return stride(width) * height
}

func stride(width int) int {
	return (width + 7) / 8
}

// Stride returns the number of bytes per row.
func (b Buffer) Stride() int {
	return stride(b.Width)
}

// Bit reports whether the pixel at (x, y) is lit.
func (b Buffer) Bit(x, y int) bool {
	return b.Data[y*b.Stride()+x/8]&(1<<(7-uint(x%8))) != 0
}

// Encode decodes imageBytes and packs it at width x height.
func Encode(imageBytes []byte, width, height int) (Buffer, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Buffer{}, &DecodeError{Err: err}
	}
	return EncodeImage(img, width, height), nil
}

// EncodeImage scales img to width x height with nearest-neighbour sampling
// when its bounds differ, thresholds it and packs the rows.
func EncodeImage(img image.Image, width, height int) Buffer {
	src := img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), opaque{img}, b, draw.Src, nil)
		src = dst
	}

	bounds := src.Bounds()
	rowBytes := stride(width)
	data := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for x := 0; x < width; x++ {
			if Luminance(src.At(bounds.Min.X+x, bounds.Min.Y+y)) > Threshold {
				row[x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}

	return Buffer{Data: data, Width: width, Height: height}
}

// opaque drops alpha so that scaling keeps the straight RGB of transparent
// pixels. Luminance ignores alpha, resized or not.
type opaque struct {
	image.Image
}

func (o opaque) ColorModel() color.Model {
	return color.NRGBAModel
}

func (o opaque) At(x, y int) color.Color {
	c := color.NRGBAModel.Convert(o.Image.At(x, y)).(color.NRGBA)
	c.A = 0xff
	return c
}

// Luminance returns the 8-bit luma of c using the ITU-R 601 weights of
// color.GrayModel, applied to the non-premultiplied channels.
func Luminance(c color.Color) uint8 {
	if g, ok := c.(color.Gray); ok {
		return g.Y
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	y := (19595*uint32(n.R) + 38470*uint32(n.G) + 7471*uint32(n.B) + 1<<15) >> 16
	return uint8(y)
}
