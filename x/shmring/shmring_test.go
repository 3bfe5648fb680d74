package shmring

import "testing"

func TestRing_OrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)

	// Push a known sequence through with mismatched step sizes, forcing
	// frequent wraps and partial first-span copies on both sides.
	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	pending := src
	dst := make([]byte, 0, N)

	for len(dst) < N {
		if len(pending) > 0 {
			step := 7
			if step > len(pending) {
				step = len(pending)
			}
			n := r.TryWriteFrom(pending[:step])
			pending = pending[n:]
		}

		var tmp [17]byte
		if n := r.TryReadInto(tmp[:]); n > 0 {
			dst = append(dst, tmp[:n]...)
		}
	}

	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
}

func TestRing_SpaceAndAvailableAccounting(t *testing.T) {
	r := New(8)

	if r.Space() != 8 || r.Available() != 0 {
		t.Fatalf("fresh ring: space=%d avail=%d", r.Space(), r.Available())
	}

	if n := r.TryWriteFrom([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("write 5 -> %d", n)
	}
	if r.Space() != 3 || r.Available() != 5 {
		t.Fatalf("after write: space=%d avail=%d", r.Space(), r.Available())
	}

	// A full ring accepts nothing more.
	if n := r.TryWriteFrom([]byte{6, 7, 8, 9}); n != 3 {
		t.Fatalf("write into remaining 3 -> %d", n)
	}
	if n := r.TryWriteFrom([]byte{10}); n != 0 {
		t.Fatalf("write into full ring -> %d", n)
	}

	got := make([]byte, 8)
	if n := r.TryReadInto(got); n != 8 {
		t.Fatalf("drain -> %d", n)
	}
	for i, b := range got {
		if b != byte(i+1) {
			t.Fatalf("byte %d = %d", i, b)
		}
	}
}

func TestRing_ReadableEdgeCoalesces(t *testing.T) {
	r := New(8)

	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}

	if n := r.TryWriteFrom([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("write 3 -> %d", n)
	}
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable after empty->non-empty")
	}

	// Further writes while non-empty do not produce another token.
	r.TryWriteFrom([]byte{4})
	select {
	case <-r.Readable():
		t.Fatal("unexpected extra Readable")
	default:
	}
}

func TestRing_WritableEdgeFiresOnFullToNonFull(t *testing.T) {
	r := New(4)

	r.TryWriteFrom([]byte{1, 2, 3, 4})
	<-r.Readable() // consume the readable token; not under test here

	select {
	case <-r.Writable():
		t.Fatal("unexpected Writable while still full")
	default:
	}

	r.TryReadInto(make([]byte, 1))
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable after full->non-full")
	}

	// Draining further while already non-full stays coalesced.
	r.TryReadInto(make([]byte, 1))
	select {
	case <-r.Writable():
		t.Fatal("unexpected extra Writable")
	default:
	}
}

func TestRing_BadSizePanics(t *testing.T) {
	for _, size := range []int{0, 1, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) did not panic", size)
				}
			}()
			New(size)
		}()
	}
}
