// ABOUTME: Source interface and resource dispatch
// ABOUTME: Opens files, URLs and generated tones by resource identifier
package decode

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
)

// Source produces interleaved PCM samples
type Source interface {
	// Read fills samples and returns how many were written. It returns
	// io.EOF once the source is exhausted.
	Read(samples []int32) (int, error)

	// Format describes the samples Read produces
	Format() audio.Format

	// Rewind restarts the source from the beginning
	Rewind() error

	// Close releases the source
	Close() error
}

// opener reopens the underlying byte stream; used to rewind
type opener func() (io.ReadCloser, error)

// Open resolves a resource identifier into a Source
func Open(resource string) (Source, error) {
	if strings.HasPrefix(resource, TonePrefix) {
		return ParseTone(resource)
	}

	open, ext, err := resolve(resource)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".mp3":
		return newMP3(open)
	case ".flac":
		return newFLAC(open)
	default:
		return nil, fmt.Errorf("unsupported audio format: %q (supported: .mp3, .flac, tone:)", ext)
	}
}

// resolve returns an opener and the lowercase extension for resource
func resolve(resource string) (opener, string, error) {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		u, err := url.Parse(resource)
		if err != nil {
			return nil, "", fmt.Errorf("invalid url %q: %w", resource, err)
		}
		return httpOpener(resource), strings.ToLower(filepath.Ext(u.Path)), nil
	}

	if _, err := os.Stat(resource); err != nil {
		return nil, "", fmt.Errorf("audio file not found: %s", resource)
	}
	open := func() (io.ReadCloser, error) {
		return os.Open(resource)
	}
	return open, strings.ToLower(filepath.Ext(resource)), nil
}

func httpOpener(u string) opener {
	return func() (io.ReadCloser, error) {
		resp, err := http.Get(u)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP error: %s", resp.Status)
		}
		return resp.Body, nil
	}
}
