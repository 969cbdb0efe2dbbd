// ABOUTME: Per-request playback configuration and property resolution
// ABOUTME: Typed well-known fields plus an open pass-through property map
package session

import "strings"

// Config describes a single play request
type Config struct {
	// Resource identifies the audio to play (file path or tone: URI). Required.
	Resource string `json:"resource"`

	// DestroyOnEnded removes the session when playback ends naturally (default: true)
	DestroyOnEnded *bool `json:"destroy_on_ended,omitempty"`

	// Volume overrides the group volume at creation time
	Volume *float64 `json:"volume,omitempty"`

	// Parent is the container label assigned to the playback
	Parent string `json:"parent,omitempty"`

	// Name labels the playback (default: session ID)
	Name string `json:"name,omitempty"`

	// Looped plays the resource continuously
	Looped bool `json:"looped,omitempty"`

	// TimePosition is the start offset in seconds
	TimePosition float64 `json:"time_position,omitempty"`

	// Persistent sessions are replicated to dependent peers
	Persistent bool `json:"persistent,omitempty"`

	// Properties are passed through to playbacks that accept them
	Properties map[string]any `json:"properties,omitempty"`
}

// identityProperties are governed by dedicated fields and never passed through
var identityProperties = map[string]struct{}{
	"resource":         {},
	"destroy_on_ended": {},
	"parent":           {},
	"volume":           {},
	"name":             {},
	"looped":           {},
}

// IsIdentityProperty reports whether name is reserved for dedicated handling
func IsIdentityProperty(name string) bool {
	_, ok := identityProperties[strings.ToLower(name)]
	return ok
}

// Resolve returns value unless it is the zero value, in which case def is returned
func Resolve[T comparable](value, def T) T {
	var zero T
	if value == zero {
		return def
	}
	return value
}

// ResolvePtr returns the pointed-to value, or def when value is nil
func ResolvePtr[T any](value *T, def T) T {
	if value == nil {
		return def
	}
	return *value
}

// Lookup returns the named property when present and truthy, else def.
// The registry resolves identity properties such as "looped" through it.
func (c Config) Lookup(name string, def any) any {
	v, ok := c.Properties[name]
	if !ok || !truthy(v) {
		return def
	}
	return v
}

// WithDestroyOnEnded returns a copy of c with DestroyOnEnded set
func (c Config) WithDestroyOnEnded(v bool) Config {
	c.DestroyOnEnded = &v
	return c
}

// WithVolume returns a copy of c with a volume override
func (c Config) WithVolume(v float64) Config {
	c.Volume = &v
	return c
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
