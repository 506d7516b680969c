package kvdrive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// withSuffix appends ext after a path's existing extension rather than
// replacing it, so "data.kv" becomes "data.kv.bk" and "data" becomes
// "data.bk". Used to derive the sibling file [Store.Compact] writes to.
func withSuffix(path, ext string) string {
	return path + "." + ext
}

// verifyFileExists distinguishes "file is absent" from other stat failures,
// returning [ErrNotFound] wrapped with the path in the former case.
func verifyFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}

		return fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s: %w (is a directory)", path, ErrInvalidInput)
	}

	return nil
}

// ParseBufferSize parses strings like "64", "64k", "64KB", "1 MiB", "2g"
// into a byte count. Units are case-insensitive; a bare number is bytes.
func ParseBufferSize(s string) (int, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	trimmed = strings.ReplaceAll(trimmed, " ", "")

	numEnd := len(trimmed)
	for i, r := range trimmed {
		if r < '0' || r > '9' {
			numEnd = i
			break
		}
	}

	numPart, unitPart := trimmed[:numEnd], trimmed[numEnd:]

	var multiplier int
	switch unitPart {
	case "", "b":
		multiplier = 1
	case "k", "kb", "kib":
		multiplier = 1024
	case "m", "mb", "mib":
		multiplier = 1024 * 1024
	case "g", "gb", "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("%w: invalid buffer size unit %q", ErrInvalidInput, unitPart)
	}

	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse buffer size %q: %v", ErrInvalidInput, s, err)
	}

	return n * multiplier, nil
}

// FormatBytes renders a byte count as human-readable text ("512 bytes",
// "2.00 KiB", "5.00 MiB", "8.19 GiB"), for diagnostics and the dev tools'
// "info" commands.
func FormatBytes(n uint64) string {
	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
	)

	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/float64(gib))
	case n >= mib:
		return fmt.Sprintf("%.2f MiB", float64(n)/float64(mib))
	case n >= kib:
		return fmt.Sprintf("%.2f KiB", float64(n)/float64(kib))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// compactionSiblingPath returns the path [Store.Compact] rewrites into
// before atomically renaming it over path.
func compactionSiblingPath(path string) string {
	return withSuffix(filepath.Clean(path), "bk")
}
