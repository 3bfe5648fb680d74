package serial

import (
	"context"
	"sync/atomic"

	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/Quadra-NSL/mjlib/micro/events"
)

// PortStream adapts a blocking Port into an async.Stream. Each outstanding
// operation is serviced by a short-lived goroutine blocking on the port;
// the completion is posted to the deferred-task queue, so callbacks run in
// the same cooperative context as everything else.
//
// One outstanding read and one outstanding write, as for any stream.
type PortStream struct {
	queue *events.Queue
	port  Port

	ctx    context.Context
	cancel context.CancelFunc

	readBusy  atomic.Bool
	writeBusy atomic.Bool
}

var _ async.Stream = (*PortStream)(nil)

// NewPortStream wraps port. Close releases the blocked service goroutines.
func NewPortStream(queue *events.Queue, port Port) *PortStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &PortStream{queue: queue, port: port, ctx: ctx, cancel: cancel}
}

// Close aborts any blocked operations. Their callbacks still fire, with the
// port's cancellation error.
func (s *PortStream) Close() { s.cancel() }

func (s *PortStream) AsyncReadSome(p []byte, cb async.SizeCallback) {
	if !s.readBusy.CompareAndSwap(false, true) {
		panic("serial: port read already outstanding")
	}
	if len(p) == 0 {
		s.queue.Call(func() {
			s.readBusy.Store(false)
			cb(nil, 0)
		})
		return
	}
	go func() {
		n, err := s.port.RecvSomeContext(s.ctx, p)
		s.queue.Call(func() {
			s.readBusy.Store(false)
			cb(err, n)
		})
	}()
}

func (s *PortStream) AsyncWriteSome(p []byte, cb async.SizeCallback) {
	if !s.writeBusy.CompareAndSwap(false, true) {
		panic("serial: port write already outstanding")
	}
	if len(p) == 0 {
		s.queue.Call(func() {
			s.writeBusy.Store(false)
			cb(nil, 0)
		})
		return
	}
	go func() {
		n, err := s.port.Write(p)
		s.queue.Call(func() {
			s.writeBusy.Store(false)
			cb(err, n)
		})
	}()
}
