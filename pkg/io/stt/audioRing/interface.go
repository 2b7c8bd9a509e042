package audioring

import (
	"encoding/binary"
	"errors"
	"time"
)

var ErrShortFrame = errors.New("audio frame header truncated")

// AudioInput is one chunk of captured PCM.
type AudioInput struct {
	Data       []byte
	Timestamp  time.Time
	SampleRate int32
	Channels   int16
}

// Duration of the chunk at its own format.
func (a AudioInput) Duration() time.Duration {
	ch := int64(a.Channels)
	if ch <= 0 {
		ch = 1
	}
	if a.SampleRate <= 0 {
		return 0
	}
	samples := int64(len(a.Data)) / 2 / ch
	return time.Duration(samples) * time.Second / time.Duration(a.SampleRate)
}

// frame layout: timestamp(8) + sampleRate(4) + channels(2) + dataLen(4) + data
const frameHeader = 8 + 4 + 2 + 4

func (a *AudioInput) MarshalBinary() ([]byte, error) {
	buf := make([]byte, frameHeader+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(a.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(a.SampleRate))
	binary.LittleEndian.PutUint16(buf[12:], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[14:], uint32(len(a.Data)))
	copy(buf[frameHeader:], a.Data)
	return buf, nil
}

func (a *AudioInput) UnmarshalBinary(data []byte) error {
	if len(data) < frameHeader {
		return ErrShortFrame
	}
	a.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	a.SampleRate = int32(binary.LittleEndian.Uint32(data[8:]))
	a.Channels = int16(binary.LittleEndian.Uint16(data[12:]))
	n := int(binary.LittleEndian.Uint32(data[14:]))
	if len(data)-frameHeader < n {
		return ErrShortFrame
	}
	a.Data = make([]byte, n)
	copy(a.Data, data[frameHeader:frameHeader+n])
	return nil
}

// AudioRingBuffer holds the most recent audio of an utterance. When full the
// oldest frames are dropped to make room.
type AudioRingBuffer interface {
	Enqueue(audioSlice AudioInput) error
	Dequeue() (AudioInput, bool)
	PeekN(n int32) []AudioInput
	// Drain removes and returns every buffered frame, oldest first.
	Drain() []AudioInput
	// TrimTo drops the oldest frames until at most d of audio remains.
	TrimTo(d time.Duration)
	Duration() time.Duration
	Frames() int
	Len() int
	Capacity() int
	Reset()
}
