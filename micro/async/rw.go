package async

import (
	"strings"

	"github.com/Quadra-NSL/mjlib/errcode"
)

// WriteAll writes the whole of p, re-issuing AsyncWriteSome for the
// remainder after each partial completion. cb fires once, with nil after the
// final byte is accepted or with the first error observed. An empty p
// completes immediately.
func WriteAll(s WriteStream, p []byte, cb ErrorCallback) {
	if len(p) == 0 {
		cb(nil)
		return
	}

	s.AsyncWriteSome(p, func(err error, n int) {
		if err != nil {
			cb(err)
			return
		}
		if n == len(p) {
			cb(nil)
			return
		}
		WriteAll(s, p[n:], cb)
	})
}

// ReadAll fills the whole of p before firing cb, re-issuing AsyncReadSome
// for the remaining capacity after each partial delivery.
func ReadAll(s ReadStream, p []byte, cb ErrorCallback) {
	if len(p) == 0 {
		cb(nil)
		return
	}

	s.AsyncReadSome(p, func(err error, n int) {
		if err != nil {
			cb(err)
			return
		}
		if n == len(p) {
			cb(nil)
			return
		}
		ReadAll(s, p[n:], cb)
	})
}

// ReadUntil reads into buf one byte at a time until a byte from delims
// arrives, then fires cb with the byte count including the delimiter.
// Filling buf without seeing a delimiter fires cb with
// errcode.ReadUntilOverflow and the count of bytes consumed.
func ReadUntil(s ReadStream, buf []byte, delims string, cb SizeCallback) {
	readUntil(s, buf, delims, 0, cb)
}

func readUntil(s ReadStream, buf []byte, delims string, pos int, cb SizeCallback) {
	if pos >= len(buf) {
		cb(errcode.ReadUntilOverflow, pos)
		return
	}

	s.AsyncReadSome(buf[pos:pos+1], func(err error, n int) {
		if err != nil {
			cb(err, pos)
			return
		}
		if n == 0 {
			readUntil(s, buf, delims, pos, cb)
			return
		}
		if strings.IndexByte(delims, buf[pos]) >= 0 {
			cb(nil, pos+1)
			return
		}
		readUntil(s, buf, delims, pos+1, cb)
	})
}

// IgnoreUntil discards bytes until one from delims arrives. Used to
// resynchronise a line-oriented reader after an error. Read errors are
// ignored; the scan simply continues.
func IgnoreUntil(s ReadStream, delims string, cb ErrorCallback) {
	var scratch [1]byte
	ignoreUntil(s, scratch[:], delims, cb)
}

func ignoreUntil(s ReadStream, scratch []byte, delims string, cb ErrorCallback) {
	s.AsyncReadSome(scratch, func(err error, n int) {
		if err == nil && n == 1 && strings.IndexByte(delims, scratch[0]) >= 0 {
			cb(nil)
			return
		}
		ignoreUntil(s, scratch, delims, cb)
	})
}
