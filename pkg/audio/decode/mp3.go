// ABOUTME: MP3 source
// ABOUTME: Decodes MP3 files and streams to int32 samples with go-mp3
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit stereo
const mp3Channels = 2

type mp3Source struct {
	open    opener
	rc      io.ReadCloser
	decoder *mp3.Decoder
	buf     []byte
	rate    int
}

func newMP3(open opener) (*mp3Source, error) {
	s := &mp3Source{open: open}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *mp3Source) reset() error {
	rc, err := s.open()
	if err != nil {
		return err
	}

	decoder, err := mp3.NewDecoder(rc)
	if err != nil {
		rc.Close()
		return fmt.Errorf("failed to decode MP3: %w", err)
	}

	if s.rc != nil {
		s.rc.Close()
	}
	s.rc = rc
	s.decoder = decoder
	s.rate = decoder.SampleRate()
	return nil
}

func (s *mp3Source) Read(samples []int32) (int, error) {
	need := len(samples) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.decoder, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	if count == 0 {
		return 0, io.EOF
	}
	return count, nil
}

func (s *mp3Source) Format() audio.Format {
	return audio.Format{SampleRate: s.rate, Channels: mp3Channels, BitDepth: 16}
}

func (s *mp3Source) Rewind() error {
	return s.reset()
}

func (s *mp3Source) Close() error {
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc = nil
	return err
}
