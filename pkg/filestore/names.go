package filestore

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"p9e.in/reasonsform/pkg/apperr"
)

// MaxNameBytes caps the stored original filename.
const MaxNameBytes = 255

// RepairFilename undoes multipart filenames whose UTF-8 bytes were decoded as
// Latin-1, so that "보고서.pdf" arrives as one rune per UTF-8 byte.
//
// The name is re-encoded only when every rune fits in a byte, at least one is
// in 0x80-0xFF, and the resulting bytes are valid UTF-8 without replacement
// characters. ASCII and correctly decoded names come back unchanged.
func RepairFilename(raw string) string {
	high := false
	for _, r := range raw {
		if r > 0xFF {
			return raw
		}
		if r >= 0x80 {
			high = true
		}
	}
	if !high {
		return raw
	}

	fixed, err := charmap.ISO8859_1.NewEncoder().String(raw)
	if err != nil || !utf8.ValidString(fixed) || strings.ContainsRune(fixed, utf8.RuneError) {
		return raw
	}
	return fixed
}

// SanitizeName normalizes a client filename to NFC and rejects names that
// could address anything but a single file.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("file name", "file name is required")
	}
	if !utf8.ValidString(name) {
		return "", apperr.Validation("file name", "file name is not valid UTF-8")
	}
	name = norm.NFC.String(name)

	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			return "", apperr.Validation("file name", "file name contains control characters")
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return "", apperr.Validation("file name", "file name contains path separators")
	}
	if name == "." || name == ".." {
		return "", apperr.Validation("file name", "file name is not a file")
	}
	if len(name) > MaxNameBytes {
		return "", apperr.Validation("file name", "file name is longer than %d bytes", MaxNameBytes)
	}
	return name, nil
}

// declaredExt returns the lowercase extension of name with jpeg folded into jpg.
func declaredExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}
