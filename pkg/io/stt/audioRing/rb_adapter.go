package audioring

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

var ErrFrameTooLarge = errors.New("audio frame too large for buffer")

// ringAudio stores length prefixed frames in a byte ring. A side list of
// frame durations keeps Duration cheap.
type ringAudio struct {
	mu        sync.Mutex
	size      int
	rb        *ringbuffer.RingBuffer
	durations []time.Duration
	total     time.Duration
}

func New(size int) AudioRingBuffer {
	return &ringAudio{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

// NewForDuration sizes the ring to hold roughly d of mono audio at sampleRate
// in chunks of chunk.
func NewForDuration(d time.Duration, sampleRate int, chunk time.Duration) AudioRingBuffer {
	pcm := int(int64(sampleRate) * int64(d) / int64(time.Second) * 2)
	frames := 1
	if chunk > 0 {
		frames = int(d/chunk) + 1
	}
	return New(pcm + frames*(frameHeader+4))
}

func (r *ringAudio) Capacity() int { return r.size }

func (r *ringAudio) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

func (r *ringAudio) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.durations)
}

func (r *ringAudio) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *ringAudio) Enqueue(audioSlice AudioInput) error {
	data, err := audioSlice.MarshalBinary()
	if err != nil {
		return err
	}
	required := len(data) + 4
	if required > r.rb.Capacity() {
		return ErrFrameTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.rb.Free() < required {
		if _, ok := r.popLocked(); !ok {
			// framing lost, start over
			r.resetLocked()
			break
		}
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := r.rb.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := r.rb.Write(data); err != nil {
		return err
	}
	d := audioSlice.Duration()
	r.durations = append(r.durations, d)
	r.total += d
	return nil
}

func (r *ringAudio) Dequeue() (AudioInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popLocked()
}

func (r *ringAudio) popLocked() (AudioInput, bool) {
	if r.rb.IsEmpty() {
		return AudioInput{}, false
	}
	var prefix [4]byte
	if n, err := r.rb.Read(prefix[:]); err != nil || n != 4 {
		return AudioInput{}, false
	}
	size := int(binary.LittleEndian.Uint32(prefix[:]))
	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != size {
		return AudioInput{}, false
	}
	if len(r.durations) > 0 {
		r.total -= r.durations[0]
		r.durations = r.durations[1:]
	}

	var in AudioInput
	if err := in.UnmarshalBinary(data); err != nil {
		return AudioInput{}, false
	}
	return in, true
}

func (r *ringAudio) Drain() []AudioInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AudioInput, 0, len(r.durations))
	for {
		in, ok := r.popLocked()
		if !ok {
			break
		}
		out = append(out, in)
	}
	r.resetLocked()
	return out
}

func (r *ringAudio) TrimTo(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.total > d && len(r.durations) > 0 {
		if _, ok := r.popLocked(); !ok {
			r.resetLocked()
			return
		}
	}
}

// PeekN returns up to n of the oldest frames without consuming them.
func (r *ringAudio) PeekN(n int32) []AudioInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]AudioInput, 0, n)
	if r.rb.IsEmpty() {
		return result
	}

	raw := r.rb.Bytes(nil)
	for offset := 0; int32(len(result)) < n && offset+4 <= len(raw); {
		size := int(binary.LittleEndian.Uint32(raw[offset:]))
		offset += 4
		if offset+size > len(raw) {
			break
		}
		var in AudioInput
		if err := in.UnmarshalBinary(raw[offset : offset+size]); err != nil {
			break
		}
		result = append(result, in)
		offset += size
	}
	return result
}

func (r *ringAudio) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *ringAudio) resetLocked() {
	r.rb.Reset()
	r.durations = r.durations[:0]
	r.total = 0
}
