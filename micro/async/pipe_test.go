package async

import (
	"testing"

	"github.com/Quadra-NSL/mjlib/errcode"
	"github.com/Quadra-NSL/mjlib/micro/events"
)

func pipeHarness() (*events.Queue, *Pipe) {
	q := events.NewQueue(64)
	return q, NewPipe(q.Call)
}

func TestPipe_WriteThenRead(t *testing.T) {
	q, p := pipeHarness()

	var wn, rn int
	p.SideA().AsyncWriteSome([]byte("abc"), func(err error, n int) { wn = n })

	buf := make([]byte, 8)
	p.SideB().AsyncReadSome(buf, func(err error, n int) { rn = n })
	q.Poll()

	if wn != 3 || rn != 3 || string(buf[:3]) != "abc" {
		t.Fatalf("transfer = (w %d, r %d, %q)", wn, rn, buf[:3])
	}
}

func TestPipe_ReadThenWrite(t *testing.T) {
	q, p := pipeHarness()

	buf := make([]byte, 8)
	var rn int
	p.SideB().AsyncReadSome(buf, func(err error, n int) { rn = n })
	p.SideA().AsyncWriteSome([]byte("xy"), func(error, int) {})
	q.Poll()

	if rn != 2 || string(buf[:2]) != "xy" {
		t.Fatalf("read = (%d, %q)", rn, buf[:2])
	}
}

func TestPipe_ShortReadTruncatesWrite(t *testing.T) {
	q, p := pipeHarness()

	var wn int
	p.SideA().AsyncWriteSome([]byte("abcdef"), func(err error, n int) { wn = n })

	buf := make([]byte, 4)
	var rn int
	p.SideB().AsyncReadSome(buf, func(err error, n int) { rn = n })
	q.Poll()

	// The rendezvous moves what fits; the writer learns how much was
	// taken and may re-issue the rest (WriteAll does exactly that).
	if wn != 4 || rn != 4 || string(buf[:4]) != "abcd" {
		t.Fatalf("transfer = (w %d, r %d, %q)", wn, rn, buf[:4])
	}
}

func TestPipe_BothDirectionsIndependent(t *testing.T) {
	q, p := pipeHarness()

	aBuf := make([]byte, 8)
	bBuf := make([]byte, 8)
	var aN, bN int
	p.SideA().AsyncReadSome(aBuf, func(err error, n int) { aN = n })
	p.SideB().AsyncReadSome(bBuf, func(err error, n int) { bN = n })

	p.SideA().AsyncWriteSome([]byte("to-b"), func(error, int) {})
	p.SideB().AsyncWriteSome([]byte("to-a"), func(error, int) {})
	q.Poll()

	if string(aBuf[:aN]) != "to-a" || string(bBuf[:bN]) != "to-b" {
		t.Fatalf("a got %q, b got %q", aBuf[:aN], bBuf[:bN])
	}
}

func TestPipe_ZeroLengthCompletesImmediately(t *testing.T) {
	q, p := pipeHarness()

	var done bool
	p.SideA().AsyncReadSome(nil, func(err error, n int) {
		if err != nil || n != 0 {
			t.Fatalf("zero read = (%v, %d)", err, n)
		}
		done = true
	})
	q.Poll()
	if !done {
		t.Fatal("zero-length read never completed")
	}
}

func TestPipe_DoubleReadPanics(t *testing.T) {
	_, p := pipeHarness()

	buf := make([]byte, 4)
	p.SideA().AsyncReadSome(buf, func(error, int) {})

	defer func() {
		if recover() == nil {
			t.Fatal("second outstanding read did not panic")
		}
	}()
	p.SideA().AsyncReadSome(buf, func(error, int) {})
}

func TestPipe_WriteAllAcrossShortReads(t *testing.T) {
	q, p := pipeHarness()

	var sent error = errcode.Error
	WriteAll(p.SideA(), []byte("a longer message"), func(err error) { sent = err })

	var got []byte
	buf := make([]byte, 5)
	var pump func(err error, n int)
	pump = func(err error, n int) {
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, buf[:n]...)
		if len(got) < len("a longer message") {
			p.SideB().AsyncReadSome(buf, pump)
		}
	}
	p.SideB().AsyncReadSome(buf, pump)
	for q.Poll() > 0 {
	}

	if sent != nil {
		t.Fatalf("write err = %v", sent)
	}
	if string(got) != "a longer message" {
		t.Fatalf("received %q", got)
	}
}
