package command

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/Quadra-NSL/mjlib/micro/events"
)

type harness struct {
	q    *events.Queue
	mgr  *Manager
	host async.Stream // the test's end of the wire
}

func newHarness() *harness {
	q := events.NewQueue(256)
	p := async.NewPipe(q.Call)
	gate := async.NewExclusive[async.WriteStream](p.SideB(), 0)
	m := NewManager(p.SideB(), gate)
	return &harness{q: q, mgr: m, host: p.SideA()}
}

func (h *harness) drain() {
	for h.q.Poll() > 0 {
	}
}

func (h *harness) sendLine(t *testing.T, line string) {
	t.Helper()
	done := false
	async.WriteAll(h.host, []byte(line+"\r\n"), func(err error) {
		if err != nil {
			t.Fatalf("send %q: %v", line, err)
		}
		done = true
	})
	h.drain()
	if !done {
		t.Fatalf("send %q never completed", line)
	}
}

func (h *harness) readLine(t *testing.T) string {
	t.Helper()
	var buf [128]byte
	got := -1
	async.ReadUntil(h.host, buf[:], "\n", func(err error, n int) {
		if err != nil {
			t.Fatalf("read line: %v", err)
		}
		got = n
	})
	h.drain()
	if got < 0 {
		t.Fatal("no response line arrived")
	}
	return strings.TrimRight(string(buf[:got]), "\r\n")
}

func respond(msg string) Handler {
	return func(args []string, r Response) {
		async.WriteAll(r.Stream, []byte(msg+"\r\n"), r.Done)
	}
}

func TestManager_DispatchAndRespond(t *testing.T) {
	h := newHarness()
	h.mgr.Register("ping", respond("pong"))
	h.mgr.Start()
	h.drain()

	h.sendLine(t, "ping")
	if got := h.readLine(t); got != "pong" {
		t.Fatalf("response = %q, want %q", got, "pong")
	}
}

func TestManager_UnknownCommand(t *testing.T) {
	h := newHarness()
	h.mgr.Start()
	h.drain()

	h.sendLine(t, "nope")
	if got := h.readLine(t); got != "unknown command" {
		t.Fatalf("response = %q", got)
	}
}

func TestManager_ArgumentTokenization(t *testing.T) {
	h := newHarness()
	h.mgr.Register("echo", func(args []string, r Response) {
		msg := fmt.Sprintf("%d:%s", len(args), strings.Join(args, "|"))
		async.WriteAll(r.Stream, []byte(msg+"\r\n"), r.Done)
	})
	h.mgr.Start()
	h.drain()

	h.sendLine(t, `echo foo "bar baz"`)
	if got := h.readLine(t); got != "2:foo|bar baz" {
		t.Fatalf("response = %q", got)
	}
}

func TestManager_MalformedLine(t *testing.T) {
	h := newHarness()
	h.mgr.Start()
	h.drain()

	h.sendLine(t, `cmd "unterminated`)
	if got := h.readLine(t); got != "malformed command" {
		t.Fatalf("response = %q", got)
	}
}

func TestManager_EmptyLineIgnored(t *testing.T) {
	h := newHarness()
	h.mgr.Register("ping", respond("pong"))
	h.mgr.Start()
	h.drain()

	h.sendLine(t, "")
	h.sendLine(t, "ping")
	if got := h.readLine(t); got != "pong" {
		t.Fatalf("response after blank line = %q", got)
	}
}

func TestManager_CommandDroppedWhileResponseOutstanding(t *testing.T) {
	h := newHarness()

	var pending *Response
	h.mgr.Register("hold", func(args []string, r Response) {
		pending = &r
	})
	dispatched := 0
	h.mgr.Register("count", func(args []string, r Response) {
		dispatched++
		async.WriteAll(r.Stream, []byte("counted\r\n"), r.Done)
	})
	h.mgr.Start()
	h.drain()

	h.sendLine(t, "hold")
	if pending == nil {
		t.Fatal("hold handler never ran")
	}

	// The response is still outstanding, so this command is dropped.
	h.sendLine(t, "count")
	if dispatched != 0 {
		t.Fatal("command dispatched while a response was outstanding")
	}

	pending.Done(nil)
	h.drain()

	h.sendLine(t, "count")
	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatched)
	}
	if got := h.readLine(t); got != "counted" {
		t.Fatalf("response = %q", got)
	}
}

func TestManager_LongLineResynchronizes(t *testing.T) {
	h := newHarness()
	h.mgr.Register("ping", respond("pong"))
	h.mgr.Start()
	h.drain()

	// Overflow the line buffer; the manager discards through the next
	// delimiter and keeps going.
	h.sendLine(t, strings.Repeat("x", 2*MaxLineLength))
	h.sendLine(t, "ping")
	if got := h.readLine(t); got != "pong" {
		t.Fatalf("response after oversized line = %q", got)
	}
}

func TestManager_RegisterReplaces(t *testing.T) {
	h := newHarness()
	h.mgr.Register("ping", respond("old"))
	h.mgr.Register("ping", respond("new"))
	h.mgr.Start()
	h.drain()

	h.sendLine(t, "ping")
	if got := h.readLine(t); got != "new" {
		t.Fatalf("response = %q", got)
	}
}

func TestManager_RegistryFullPanics(t *testing.T) {
	h := newHarness()
	for i := 0; i < registryCapacity; i++ {
		h.mgr.Register(fmt.Sprintf("cmd%d", i), respond("ok"))
	}
	defer func() {
		if recover() == nil {
			t.Fatal("overflowing the handler table did not panic")
		}
	}()
	h.mgr.Register("one-too-many", respond("ok"))
}
