// Package firmware splices badge images into compiled firmware binaries.
//
// The firmware reserves an image slot and an optional hash slot, each
// bounded by marker byte sequences baked in at build time:
//
//	EATFRUITS <pixel data> CRUMPSPACE ... HASHDATA <8 bytes> HASHEND
//
// Patching never modifies the template; every call works on a copy.
package firmware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Marker byte sequences.
var (
	ImageStartMarker = []byte{0x45, 0x41, 0x54, 0x46, 0x52, 0x55, 0x49, 0x54, 0x53}
	ImageEndMarker   = []byte{0x43, 0x52, 0x55, 0x4D, 0x50, 0x53, 0x50, 0x41, 0x43, 0x45}
	HashStartMarker  = []byte{0x48, 0x41, 0x53, 0x48, 0x44, 0x41, 0x54, 0x41}
	HashEndMarker    = []byte{0x48, 0x41, 0x53, 0x48, 0x45, 0x4E, 0x44}
)

// HashSize is the length of the truncated content hash.
const HashSize = 8

// Region is a byte range inside a firmware binary.
type Region struct {
	Offset int
	Length int
}

// Slice returns the bytes of b covered by r.
func (r Region) Slice(b []byte) []byte {
	return b[r.Offset : r.Offset+r.Length]
}

// PatchResult is the outcome of a successful Patch.
type PatchResult struct {
	Firmware    []byte
	Image       Region
	ContentHash [HashSize]byte
	// Hash is nil when the firmware has no hash region.
	Hash *Region
}

// HashHex returns the content hash as 16 uppercase hex characters.
func (r *PatchResult) HashHex() string {
	return strings.ToUpper(hex.EncodeToString(r.ContentHash[:]))
}

// ContentHash returns the first HashSize bytes of the SHA-256 of pixels.
func ContentHash(pixels []byte) [HashSize]byte {
	sum := sha256.Sum256(pixels)
	var h [HashSize]byte
	copy(h[:], sum[:HashSize])
	return h
}

func locate(fw, start, end []byte) (Region, bool) {
	i := bytes.Index(fw, start)
	if i < 0 {
		return Region{}, false
	}
	begin := i + len(start)
	j := bytes.Index(fw[begin:], end)
	if j < 0 {
		return Region{}, false
	}
	return Region{Offset: begin, Length: j}, true
}

// LocateImage finds the image slot between the first image start marker and
// the first image end marker after it.
func LocateImage(fw []byte) (Region, error) {
	if i := bytes.Index(fw, ImageStartMarker); i < 0 {
		return Region{}, &RegionNotFoundError{Region: "image", Marker: ImageStartMarker}
	}
	r, ok := locate(fw, ImageStartMarker, ImageEndMarker)
	if !ok {
		return Region{}, &RegionNotFoundError{Region: "image", Marker: ImageEndMarker}
	}
	return r, nil
}

// LocateHash finds the hash slot. Older firmware has none.
func LocateHash(fw []byte) (Region, bool) {
	return locate(fw, HashStartMarker, HashEndMarker)
}

// Patch returns a copy of fw with pixels written into the image slot and
// their content hash written into the hash slot, if one exists.
func Patch(fw, pixels []byte) (*PatchResult, error) {
	image, err := LocateImage(fw)
	if err != nil {
		return nil, err
	}
	if image.Length != len(pixels) {
		return nil, &SizeMismatchError{Expected: image.Length, Actual: len(pixels)}
	}

	out := make([]byte, len(fw))
	copy(out, fw)
	copy(image.Slice(out), pixels)

	result := &PatchResult{
		Firmware:    out,
		Image:       image,
		ContentHash: ContentHash(pixels),
	}

	if hash, ok := LocateHash(out); ok {
		if hash.Length != HashSize {
			return nil, &HashSizeMismatchError{Expected: HashSize, Actual: hash.Length}
		}
		copy(hash.Slice(out), result.ContentHash[:])
		result.Hash = &hash
	}

	if err := Verify(result, pixels); err != nil {
		return nil, err
	}
	return result, nil
}

// Verify reads the patched regions back and compares them with what was written.
func Verify(result *PatchResult, pixels []byte) error {
	fw := result.Firmware
	if result.Image.Offset+result.Image.Length > len(fw) || !bytes.Equal(result.Image.Slice(fw), pixels) {
		return &VerificationError{Region: "image", Offset: result.Image.Offset}
	}
	if h := result.Hash; h != nil {
		if h.Offset+h.Length > len(fw) || !bytes.Equal(h.Slice(fw), result.ContentHash[:]) {
			return &VerificationError{Region: "hash", Offset: h.Offset}
		}
	}
	return nil
}

// Patcher patches a fixed template. It is safe for concurrent use.
type Patcher struct {
	template []byte
}

// NewPatcher keeps its own copy of template.
func NewPatcher(template []byte) *Patcher {
	t := make([]byte, len(template))
	copy(t, template)
	return &Patcher{template: t}
}

// Patch patches the template with pixels.
func (p *Patcher) Patch(pixels []byte) (*PatchResult, error) {
	return Patch(p.template, pixels)
}

// ImageSize returns the length of the template's image slot.
func (p *Patcher) ImageSize() (int, error) {
	r, err := LocateImage(p.template)
	if err != nil {
		return 0, err
	}
	return r.Length, nil
}
