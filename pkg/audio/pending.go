package audio

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// PendingBuffer queues raw audio frames that arrive before the agent
// connection is ready. Frames are stored in a ring buffer as
// length-prefixed records so their boundaries survive the byte stream;
// once the ring fills, Push reports the overflow and the frame is lost,
// which beats blocking a live call.
type PendingBuffer struct {
	mu   sync.Mutex
	size int
	rb   *ringbuffer.RingBuffer
}

func NewPendingBuffer(size int) *PendingBuffer {
	return &PendingBuffer{
		size: size,
		rb:   ringbuffer.New(size),
	}
}

// Push enqueues one frame. Returns an error when the frame cannot fit.
func (p *PendingBuffer) Push(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record := make([]byte, 4+len(frame))
	binary.LittleEndian.PutUint32(record, uint32(len(frame)))
	copy(record[4:], frame)

	if len(record) > p.rb.Free() {
		return errors.New("pending audio buffer full")
	}
	n, err := p.rb.Write(record)
	if err != nil {
		return err
	}
	if n != len(record) {
		return errors.New("partial write to pending audio buffer")
	}
	return nil
}

// Drain removes and returns every queued frame in arrival order.
func (p *PendingBuffer) Drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	var frames [][]byte
	for {
		header := make([]byte, 4)
		if p.rb.Length() < 4 {
			return frames
		}
		if n, err := p.rb.Read(header); err != nil || n != 4 {
			return frames
		}
		size := int(binary.LittleEndian.Uint32(header))
		frame := make([]byte, size)
		if size > 0 {
			if n, err := p.rb.Read(frame); err != nil || n != size {
				return frames
			}
		}
		frames = append(frames, frame)
	}
}

// Len reports the number of buffered bytes, including record headers.
func (p *PendingBuffer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rb.Length()
}
