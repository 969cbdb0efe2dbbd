// ABOUTME: Tests for resource decoding
// ABOUTME: Covers tone parsing, tone output and Open dispatch errors
package decode

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTone(t *testing.T) {
	tests := []struct {
		name       string
		resource   string
		wantErr    bool
		wantFreq   float64
		wantFrames int64
	}{
		{"endless", "tone:440", false, 440, 0},
		{"with duration", "tone:1000:0.5", false, 1000, 24000},
		{"fractional frequency", "tone:261.63", false, 261.63, 0},
		{"missing frequency", "tone:", true, 0, 0},
		{"zero frequency", "tone:0", true, 0, 0},
		{"negative duration", "tone:440:-1", true, 0, 0},
		{"too many parts", "tone:440:1:2", true, 0, 0},
		{"not a tone", "rain.flac", true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tone, err := ParseTone(tt.resource)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.resource)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tone.frequency != tt.wantFreq {
				t.Errorf("frequency: expected %v, got %v", tt.wantFreq, tone.frequency)
			}
			if tone.totalFrames != tt.wantFrames {
				t.Errorf("frames: expected %d, got %d", tt.wantFrames, tone.totalFrames)
			}
		})
	}
}

func TestToneFiniteReachesEOF(t *testing.T) {
	tone := NewTone(440, 0.01) // 480 frames
	buf := make([]int32, 400)

	total := 0
	for {
		n, err := tone.Read(buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total > 10000 {
			t.Fatal("tone never ended")
		}
	}

	if total != 480*2 {
		t.Errorf("expected %d samples, got %d", 480*2, total)
	}

	if err := tone.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if n, err := tone.Read(buf); n == 0 || err != nil {
		t.Errorf("expected samples after rewind, got %d (%v)", n, err)
	}
}

func TestToneIsStereoAndNonSilent(t *testing.T) {
	tone := NewTone(440, 0)
	buf := make([]int32, 960)

	n, err := tone.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("expected full read, got %d (%v)", n, err)
	}

	nonZero := false
	for i := 0; i < n; i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("frame %d: channels differ", i/2)
		}
		if buf[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected non-silent tone")
	}

	f := tone.Format()
	if f.SampleRate != 48000 || f.Channels != 2 {
		t.Errorf("unexpected format %+v", f)
	}
}

func TestOpenTone(t *testing.T) {
	src, err := Open("tone:440:1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if _, ok := src.(*Tone); !ok {
		t.Errorf("expected *Tone, got %T", src)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	wav := filepath.Join(dir, "sound.wav")
	os.WriteFile(wav, []byte("RIFF"), 0o644)

	bogus := filepath.Join(dir, "bogus.flac")
	os.WriteFile(bogus, []byte("definitely not flac data"), 0o644)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tests := []struct {
		name     string
		resource string
		contains string
	}{
		{"missing file", filepath.Join(dir, "missing.mp3"), "not found"},
		{"unsupported extension", wav, "unsupported"},
		{"corrupt flac", bogus, "FLAC"},
		{"http 404", srv.URL + "/rain.flac", "HTTP error"},
		{"bad tone", "tone:abc", "frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Open(tt.resource)
			if err == nil {
				src.Close()
				t.Fatalf("expected error opening %q", tt.resource)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error containing %q, got %v", tt.contains, err)
			}
		})
	}
}
