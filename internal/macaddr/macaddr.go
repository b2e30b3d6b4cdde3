// Package macaddr normalises badge MAC addresses to AA:BB:CC:DD:EE:FF:00:11.
package macaddr

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the number of bytes in a badge MAC address.
const Size = 8

const hexLen = Size * 2

// MaxInputLength bounds what the admin forms accept before normalising.
const MaxInputLength = 23

// Normalize accepts any separator style (colons, dashes, dots, none) and
// returns the canonical form. Extra leading zero digits are dropped.
func Normalize(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return canonical(b.String())
}

// FromBytes formats an 8-byte address. Longer input is accepted when the
// excess leading bytes are zero.
func FromBytes(b []byte) (string, bool) {
	if len(b) > Size {
		for _, c := range b[:len(b)-Size] {
			if c != 0 {
				return "", false
			}
		}
		b = b[len(b)-Size:]
	}
	if len(b) != Size {
		return "", false
	}
	return canonical(strings.ToUpper(hex.EncodeToString(b)))
}

// FromUint64 formats v as a big-endian 8-byte address.
func FromUint64(v uint64) string {
	s, _ := canonical(fmt.Sprintf("%016X", v))
	return s
}

func canonical(digits string) (string, bool) {
	if len(digits) > hexLen {
		prefix := digits[:len(digits)-hexLen]
		if strings.Trim(prefix, "0") != "" {
			return "", false
		}
		digits = digits[len(digits)-hexLen:]
	}
	if len(digits) != hexLen {
		return "", false
	}

	parts := make([]string, 0, Size)
	for i := 0; i < hexLen; i += 2 {
		parts = append(parts, digits[i:i+2])
	}
	return strings.Join(parts, ":"), true
}
