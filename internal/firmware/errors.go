package firmware

import (
	"errors"
	"fmt"
)

// ErrFirmware is matched by every error this package returns.
var ErrFirmware = errors.New("firmware patch failed")

// RegionNotFoundError indicates that a required start or end marker is missing.
type RegionNotFoundError struct {
	Region string
	Marker []byte
}

func (e *RegionNotFoundError) Error() string {
	return fmt.Sprintf("no %s region in firmware: marker %q not found", e.Region, e.Marker)
}

func (e *RegionNotFoundError) Is(target error) bool { return target == ErrFirmware }

// SizeMismatchError indicates that the reserved image slot differs in length
// from the supplied pixel data.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("image size mismatch: firmware expects %d bytes but received %d bytes",
		e.Expected, e.Actual)
}

func (e *SizeMismatchError) Is(target error) bool { return target == ErrFirmware }

// HashSizeMismatchError indicates a hash region whose reservation is not HashSize bytes.
type HashSizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *HashSizeMismatchError) Error() string {
	return fmt.Sprintf("hash size mismatch: expected %d bytes but firmware reserves %d bytes",
		e.Expected, e.Actual)
}

func (e *HashSizeMismatchError) Is(target error) bool { return target == ErrFirmware }

// VerificationError indicates that a patched region did not read back as written.
type VerificationError struct {
	Region string
	Offset int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("firmware verification failed: %s region at 0x%04X does not match", e.Region, e.Offset)
}

func (e *VerificationError) Is(target error) bool { return target == ErrFirmware }
