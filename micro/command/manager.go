// Package command implements a line-oriented command dispatcher over a pair
// of asynchronous streams: CR/LF-delimited lines in, named handlers out,
// responses serialized through an exclusive gate on the write stream.
package command

import (
	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/google/shlex"
)

// MaxLineLength bounds a single command line, delimiter included.
const MaxLineLength = 100

// registryCapacity is the fixed handler table size.
const registryCapacity = 16

// Response is handed to a handler once the write stream has been acquired.
// The handler writes whatever it wants to Stream and then must call Done
// exactly once; that releases the stream to the next claimant.
type Response struct {
	Stream async.WriteStream
	Done   async.ErrorCallback
}

// Handler services one command. args holds the shell-style tokens after the
// command name.
type Handler func(args []string, r Response)

// Manager reads command lines and dispatches them to registered handlers.
// It lives entirely in deferred-task context.
type Manager struct {
	read  async.ReadStream
	write *async.Exclusive[async.WriteStream]

	names    [registryCapacity]string
	handlers [registryCapacity]Handler

	lineBuf [MaxLineLength]byte

	writeOutstanding bool
}

// NewManager builds a manager over the given streams. Call Register for
// each command, then Start.
func NewManager(read async.ReadStream, write *async.Exclusive[async.WriteStream]) *Manager {
	return &Manager{read: read, write: write}
}

// Register installs h under name, replacing any existing handler of that
// name. A full table is a fatal sizing bug.
func (m *Manager) Register(name string, h Handler) {
	if name == "" || h == nil {
		panic("command: empty registration")
	}
	for i, n := range m.names {
		if n == name {
			m.handlers[i] = h
			return
		}
	}
	for i, n := range m.names {
		if n == "" {
			m.names[i] = name
			m.handlers[i] = h
			return
		}
	}
	panic("command: handler table full")
}

func (m *Manager) lookup(name string) Handler {
	for i, n := range m.names {
		if n == name {
			return m.handlers[i]
		}
	}
	return nil
}

// Start begins the read loop. The manager reads continuously from then on.
func (m *Manager) Start() {
	m.startRead()
}

func (m *Manager) startRead() {
	async.ReadUntil(m.read, m.lineBuf[:], "\r\n", m.handleRead)
}

func (m *Manager) handleRead(err error, n int) {
	if err != nil {
		// Not much to be done; discard until the next line boundary and
		// try again.
		async.IgnoreUntil(m.read, "\r\n", func(error) {
			m.startRead()
		})
		return
	}

	m.handleLine(n)
	m.startRead()
}

func (m *Manager) handleLine(n int) {
	// If the previous response has not finished writing, drop this
	// command entirely.
	if m.writeOutstanding {
		return
	}

	// Strip the delimiter that terminated the line.
	line := string(m.lineBuf[:n-1])

	tokens, err := shlex.Split(line)
	if err != nil {
		m.respondLiteral("malformed command\r\n")
		return
	}
	if len(tokens) == 0 {
		return
	}

	handler := m.lookup(tokens[0])
	if handler == nil {
		m.respondLiteral("unknown command\r\n")
		return
	}
	args := tokens[1:]

	m.writeOutstanding = true
	m.write.AsyncStart(func(stream async.WriteStream, release async.Release) {
		handler(args, Response{
			Stream: stream,
			Done: func(error) {
				m.writeOutstanding = false
				release()
			},
		})
	})
}

// respondLiteral emits a canned reply through the write gate.
func (m *Manager) respondLiteral(msg string) {
	m.writeOutstanding = true
	m.write.AsyncStart(func(stream async.WriteStream, release async.Release) {
		async.WriteAll(stream, []byte(msg), func(error) {
			m.writeOutstanding = false
			release()
		})
	})
}
