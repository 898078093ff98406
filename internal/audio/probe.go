package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/faiface/beep/mp3"
	"github.com/go-audio/wav"
)

var ErrUnreadable = errors.New("unreadable audio")

// ProbeDuration reads the clip at path and returns its playing time. The
// container is sniffed from the first bytes rather than trusted from the
// file name.
func ProbeDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open clip: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 12)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind clip: %w", err)
	}

	var d time.Duration
	if n == len(head) && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")) {
		d, err = wavDuration(f)
	} else {
		d, err = mp3Duration(f)
	}
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: zero length", ErrUnreadable)
	}
	return d, nil
}

func wavDuration(f *os.File) (time.Duration, error) {
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	frameBytes := int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if frameBytes == 0 || dec.SampleRate == 0 {
		return 0, fmt.Errorf("%w: invalid wav format", ErrUnreadable)
	}
	frames := dec.PCMLen() / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate), nil
}

func mp3Duration(f *os.File) (time.Duration, error) {
	// The streamer owns f from here.
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = streamer.Close() }()
	return format.SampleRate.D(streamer.Len()), nil
}
