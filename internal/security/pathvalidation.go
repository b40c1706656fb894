// Package security guards the file names read from product metadata.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned for a name that resolves outside its
// directory.
var ErrPathTraversal = errors.New("path escapes product directory")

// ResolveWithin joins name onto dir and returns the result, rejecting
// absolute names and names that escape dir through ".." or a symlink.
func ResolveWithin(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ErrPathTraversal)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s is absolute", ErrPathTraversal, name)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	path := filepath.Join(absDir, name)
	if !within(absDir, path) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}

	// Symlinks are checked on the canonical paths when the target exists.
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return path, nil
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil && !within(canonicalDir, resolved) {
		return "", fmt.Errorf("%w: %s links outside %s", ErrPathTraversal, name, dir)
	}
	return path, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SanitizeFilename makes a safe file name from a band name. Characters
// other than ASCII letters, digits, dot, underscore and dash become a
// single underscore and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
