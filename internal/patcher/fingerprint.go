package patcher

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"
)

// Fingerprint is the CRC-32 (IEEE) of a file's full contents.
type Fingerprint uint32

// String renders the fingerprint as eight uppercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%08X", uint32(f))
}

// Equal reports whether f is set and equals other. A nil receiver never matches.
func (f *Fingerprint) Equal(other Fingerprint) bool {
	return f != nil && *f == other
}

// ParseFingerprint parses an up-to-8-digit hex string, with or without 0x.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" || len(s) > 8 {
		return 0, fmt.Errorf("invalid crc32 %q", s)
	}
	val, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid crc32 %q: %w", s, err)
	}
	return Fingerprint(val), nil
}

// FileFingerprint streams path through CRC-32.
func FileFingerprint(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return Fingerprint(h.Sum32()), nil
}

// Matches reports whether path has the expected fingerprint.
// A nil expectation is no constraint and always matches.
func Matches(path string, expected *Fingerprint) (bool, error) {
	if expected == nil {
		return true, nil
	}
	actual, err := FileFingerprint(path)
	if err != nil {
		return false, err
	}
	return actual == *expected, nil
}
