// ABOUTME: Session ID generation
// ABOUTME: Derives readable, collision-free IDs from resource identifiers
package session

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// NewID derives a session ID from the resource identifier plus a random suffix
func NewID(resource string) string {
	slug := slugify(resource)
	if slug == "" {
		slug = "session"
	}
	return slug + "-" + uuid.NewString()
}

// slugify reduces a resource to its lowercase base name without extension
func slugify(resource string) string {
	base := path.Base(strings.ReplaceAll(resource, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
