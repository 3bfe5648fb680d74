package async

// Pipe couples two in-memory streams: whatever is written to one side
// becomes readable on the other. A read rendezvouses with the peer side's
// outstanding write (and vice versa), and completions are handed to a
// poster so both callbacks fire from the deferred-execution context rather
// than inside each other.
//
// Useful as the transport under unit tests and host selftests, and as the
// stand-in for a wire between two protocol endpoints in one process.
type Pipe struct {
	post  func(func())
	sideA pipeSide
	sideB pipeSide
}

// NewPipe returns a pipe whose completion callbacks are delivered through
// post (typically events.Queue.Call).
func NewPipe(post func(func())) *Pipe {
	p := &Pipe{post: post}
	p.sideA = pipeSide{parent: p, other: &p.sideB}
	p.sideB = pipeSide{parent: p, other: &p.sideA}
	return p
}

// SideA returns one end of the pipe.
func (p *Pipe) SideA() Stream { return &p.sideA }

// SideB returns the other end.
func (p *Pipe) SideB() Stream { return &p.sideB }

type pipeSide struct {
	parent *Pipe
	other  *pipeSide

	readBuf  []byte
	readCB   SizeCallback
	writeBuf []byte
	writeCB  SizeCallback
}

func (s *pipeSide) AsyncReadSome(p []byte, cb SizeCallback) {
	if len(s.other.writeBuf) > 0 {
		// The peer has a write parked; satisfy both.
		n := copy(p, s.other.writeBuf)
		s.parent.post(func() { cb(nil, n) })
		peerCB := s.other.writeCB
		s.parent.post(func() { peerCB(nil, n) })
		s.other.writeBuf = nil
		s.other.writeCB = nil
		return
	}

	if s.readBuf != nil {
		panic("async: pipe read already outstanding")
	}
	if len(p) == 0 {
		s.parent.post(func() { cb(nil, 0) })
		return
	}
	s.readBuf = p
	s.readCB = cb
}

func (s *pipeSide) AsyncWriteSome(p []byte, cb SizeCallback) {
	if len(s.other.readBuf) > 0 {
		n := copy(s.other.readBuf, p)
		s.parent.post(func() { cb(nil, n) })
		peerCB := s.other.readCB
		s.parent.post(func() { peerCB(nil, n) })
		s.other.readBuf = nil
		s.other.readCB = nil
		return
	}

	if s.writeBuf != nil {
		panic("async: pipe write already outstanding")
	}
	if len(p) == 0 {
		s.parent.post(func() { cb(nil, 0) })
		return
	}
	s.writeBuf = p
	s.writeCB = cb
}
