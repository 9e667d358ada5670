// Package storage holds the layout rules shared by every object storage
// backend: files live under one prefix per department, named with a sortable
// date stamp and a random disambiguator so that two uploads with identical
// original names never collide.
package storage

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const stampLayout = "20060102T150405"

// BuildKey produces the destination key for an uploaded file, e.g.
// SAFETY/20260115T093050_1a2b3c4d_safety_notice.pdf. Uniqueness is
// structural (stamp + suffix), not verified after the fact; the suffix
// collision probability is negligible, not zero.
func BuildKey(department, originalName string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return BuildKeyWithSuffix(department, originalName, now, suffix)
}

func BuildKeyWithSuffix(department, originalName string, now time.Time, suffix string) string {
	name := SanitizeFilename(originalName)
	return path.Join(department, now.UTC().Format(stampLayout)+"_"+suffix+"_"+name)
}

// SanitizeFilename keeps letters, digits, '.', '-' and '_'; everything else
// becomes '_'. An empty result falls back to document.bin.
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
