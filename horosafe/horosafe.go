// Package horosafe provides the path and I/O guards shared by docmcp
// components: template and output names are caller-supplied and must never
// escape their directory, and archive parts are read with a byte ceiling.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("horosafe: content exceeds limit")

// SafePath validates that joining base and userInput does not escape base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+userInput))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateFileName rejects names unsuitable as a single path element:
// empty, longer than 255 bytes, containing separators, "..", or control
// characters. Unicode letters are allowed.
func ValidateFileName(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("horosafe: file name must not be empty")
	}
	if len(s) > 255 {
		return fmt.Errorf("horosafe: file name too long (max 255 bytes)")
	}
	if strings.Contains(s, "..") {
		return ErrPathTraversal
	}
	for _, r := range s {
		if r == '/' || r == '\\' || r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("horosafe: invalid character %q in file name", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r. Returns ErrTooLarge if the
// limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
