package serial

import (
	"context"
	"errors"
	"sync"

	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/Quadra-NSL/mjlib/micro/events"
	"github.com/Quadra-NSL/mjlib/x/shmring"
	"tinygo.org/x/drivers"
)

// ErrNoData is returned by ReadByte when the receive buffer is empty and
// the port is in non-blocking byte mode.
var ErrNoData = errors.New("serial: no data")

// DefaultRingSize is the receive buffer capacity of a BlockingPort.
const DefaultRingSize = 256

// BlockingPort adapts an async stream to the conventional blocking serial
// API, including tinygo.org/x/drivers.UART. Received bytes are pumped from
// the stream into a ring as they arrive, so the stream's single-read
// discipline stays hidden from the caller.
//
// The deferred-task queue must be serviced concurrently (Run in a
// goroutine, or a Poll loop elsewhere); BlockingPort's methods may be
// called from any single goroutine.
type BlockingPort struct {
	queue  *events.Queue
	stream async.Stream
	rx     *shmring.Ring

	mu      sync.Mutex
	rxErr   error
	dropped int
}

var _ drivers.UART = (*BlockingPort)(nil)
var _ Port = (*BlockingPort)(nil)

// NewBlockingPort wraps stream and starts its receive pump. ringSize zero
// selects DefaultRingSize; otherwise it must be a power of two.
func NewBlockingPort(queue *events.Queue, stream async.Stream, ringSize int) *BlockingPort {
	if ringSize == 0 {
		ringSize = DefaultRingSize
	}
	p := &BlockingPort{
		queue:  queue,
		stream: stream,
		rx:     shmring.New(ringSize),
	}
	queue.Call(p.armRead)
	return p
}

// armRead runs in task context: it keeps exactly one stream read in flight.
func (p *BlockingPort) armRead() {
	buf := make([]byte, 64)
	p.stream.AsyncReadSome(buf, func(err error, n int) {
		if err != nil {
			p.mu.Lock()
			p.rxErr = err
			p.mu.Unlock()
		}
		if n > 0 {
			wrote := p.rx.TryWriteFrom(buf[:n])
			if wrote < n {
				p.mu.Lock()
				p.dropped += n - wrote
				p.mu.Unlock()
			}
		}
		p.armRead()
	})
}

// takeErr returns and clears the latched receive error.
func (p *BlockingPort) takeErr() error {
	p.mu.Lock()
	err := p.rxErr
	p.rxErr = nil
	p.mu.Unlock()
	return err
}

// Configure satisfies drivers.UART. The underlying stream is configured at
// construction; the requested baud rate is not reprogrammable here.
func (p *BlockingPort) Configure(config drivers.UARTConfig) error { return nil }

// Buffered reports the bytes waiting in the receive ring.
func (p *BlockingPort) Buffered() int { return p.rx.Available() }

// ReadByte returns one buffered byte, or ErrNoData when none is waiting.
// drivers.UART expects the non-blocking flavor.
func (p *BlockingPort) ReadByte() (byte, error) {
	var b [1]byte
	if p.rx.TryReadInto(b[:]) == 1 {
		return b[0], nil
	}
	if err := p.takeErr(); err != nil {
		return 0, err
	}
	return 0, ErrNoData
}

// Read blocks until at least one byte is available, then returns what is
// buffered, up to len(buf).
func (p *BlockingPort) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if n := p.rx.TryReadInto(buf); n > 0 {
			return n, nil
		}
		if err := p.takeErr(); err != nil {
			return 0, err
		}
		<-p.rx.Readable()
	}
}

// Readable signals buffered data becoming available.
func (p *BlockingPort) Readable() <-chan struct{} { return p.rx.Readable() }

// RecvSomeContext is Read bounded by ctx.
func (p *BlockingPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if n := p.rx.TryReadInto(buf); n > 0 {
			return n, nil
		}
		if err := p.takeErr(); err != nil {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-p.rx.Readable():
		}
	}
}

// Write submits buf as one stream write and blocks until it completes.
func (p *BlockingPort) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	p.queue.Call(func() {
		p.stream.AsyncWriteSome(buf, func(err error, n int) {
			done <- result{n, err}
		})
	})
	r := <-done
	return r.n, r.err
}

// WriteByte writes a single byte.
func (p *BlockingPort) WriteByte(b byte) error {
	_, err := p.Write([]byte{b})
	return err
}

// Dropped reports receive bytes discarded because the ring was full.
func (p *BlockingPort) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
