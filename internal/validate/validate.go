// Package validate checks caller-supplied input at the service boundary.
// Everything here is pure string and number checking; handlers map the
// returned error kinds to HTTP status codes.
package validate

import (
	"regexp"
	"strings"

	"github.com/personaldrive/semidx/internal/semerr"
)

const (
	// MaxFileNameLength caps sanitized file names.
	MaxFileNameLength = 255
	// MaxFileIDLength caps file identifiers (UUIDs are 36 characters).
	MaxFileIDLength = 36
	// MaxQueryLength caps search query text.
	MaxQueryLength = 500
	// MaxUserIDLength caps user identifiers.
	MaxUserIDLength = 64
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	fileIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	userIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// FileName sanitizes a client-supplied file name: path components are
// stripped, unsafe characters become underscores, and the result is capped at
// MaxFileNameLength. An empty result after sanitizing is rejected.
func FileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", semerr.New(semerr.KindInvalidArgument, "file name cannot be empty")
	}
	// Strip any directory components, including Windows-style ones.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "", semerr.New(semerr.KindInvalidArgument, "file name contains no usable characters")
	}
	if len(name) > MaxFileNameLength {
		name = name[:MaxFileNameLength]
	}
	return name, nil
}

// FileID checks an identifier used in URLs and storage paths.
func FileID(id string) error {
	if id == "" {
		return semerr.New(semerr.KindInvalidArgument, "file ID cannot be empty")
	}
	if len(id) > MaxFileIDLength {
		return semerr.Newf(semerr.KindInvalidArgument, "file ID exceeds %d characters", MaxFileIDLength)
	}
	if !fileIDPattern.MatchString(id) {
		return semerr.New(semerr.KindInvalidArgument, "file ID contains invalid characters")
	}
	return nil
}

// FileSize checks a declared upload size against the configured maximum.
func FileSize(size, max int64) error {
	if size <= 0 {
		return semerr.New(semerr.KindInvalidArgument, "file size must be positive")
	}
	if size > max {
		return semerr.Newf(semerr.KindInvalidArgument, "file size %d exceeds maximum %d bytes", size, max)
	}
	return nil
}

// MimeType checks a content type against the allowed list. Parameters after
// a semicolon (charset etc.) are ignored for the comparison.
func MimeType(mimeType string, allowed []string) error {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return semerr.New(semerr.KindInvalidArgument, "content type cannot be empty")
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	mimeType = strings.ToLower(mimeType)
	for _, a := range allowed {
		if mimeType == a {
			return nil
		}
	}
	return semerr.Newf(semerr.KindInvalidArgument, "content type %q is not allowed", mimeType)
}

// Query checks search query text.
func Query(q string) error {
	if strings.TrimSpace(q) == "" {
		return semerr.New(semerr.KindInvalidArgument, "query cannot be empty")
	}
	if len(q) > MaxQueryLength {
		return semerr.Newf(semerr.KindInvalidArgument, "query exceeds %d characters", MaxQueryLength)
	}
	return nil
}

// UserID checks a user identifier from the X-User-Id header.
func UserID(id string) error {
	if id == "" {
		return semerr.New(semerr.KindInvalidArgument, "user ID cannot be empty")
	}
	if len(id) > MaxUserIDLength {
		return semerr.Newf(semerr.KindInvalidArgument, "user ID exceeds %d characters", MaxUserIDLength)
	}
	if !userIDPattern.MatchString(id) {
		return semerr.New(semerr.KindInvalidArgument, "user ID contains invalid characters")
	}
	return nil
}
