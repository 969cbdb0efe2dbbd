// ABOUTME: FLAC source
// ABOUTME: Decodes FLAC files and streams frame by frame with mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
	"github.com/mewkiz/flac"
)

type flacSource struct {
	open   opener
	rc     io.ReadCloser
	stream *flac.Stream
	format audio.Format

	// interleaved samples decoded but not yet read
	pending  []int32
	frameBuf []int32
}

func newFLAC(open opener) (*flacSource, error) {
	s := &flacSource{open: open}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *flacSource) reset() error {
	rc, err := s.open()
	if err != nil {
		return err
	}

	stream, err := flac.New(rc)
	if err != nil {
		rc.Close()
		return fmt.Errorf("failed to decode FLAC: %w", err)
	}

	if s.rc != nil {
		s.rc.Close()
	}
	s.rc = rc
	s.stream = stream
	s.pending = nil
	s.format = audio.Format{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		BitDepth:   int(stream.Info.BitsPerSample),
	}
	return nil
}

func (s *flacSource) Read(samples []int32) (int, error) {
	written := 0
	for written < len(samples) {
		if len(s.pending) == 0 {
			if err := s.decodeFrame(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return written, err
			}
		}

		n := copy(samples[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}

	if written == 0 {
		return 0, io.EOF
	}
	return written, nil
}

// decodeFrame parses the next frame into pending
func (s *flacSource) decodeFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}

	channels := s.format.Channels
	blockSize := int(frame.BlockSize)
	if cap(s.frameBuf) < blockSize*channels {
		s.frameBuf = make([]int32, blockSize*channels)
	}
	s.pending = s.frameBuf[:blockSize*channels]

	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			s.pending[i*channels+ch] = audio.ScaleTo24Bit(frame.Subframes[ch].Samples[i], s.format.BitDepth)
		}
	}
	return nil
}

func (s *flacSource) Format() audio.Format {
	return s.format
}

func (s *flacSource) Rewind() error {
	return s.reset()
}

func (s *flacSource) Close() error {
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc = nil
	return err
}
