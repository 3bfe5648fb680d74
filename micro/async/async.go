// Package async holds the callback vocabulary of the asynchronous I/O core:
// stream interfaces, completion callback types, the exclusive resource gate
// and small continuation helpers built on top of them.
//
// The concurrency model is single-threaded cooperative: operations complete
// by callback, either synchronously within the issuing call or later from a
// deferred task. Nothing in this package blocks.
package async

// SizeCallback reports completion of a partial read or write: err is nil on
// success and n is the number of bytes actually transferred. An error and a
// non-zero n may be delivered together; n then counts the bytes moved before
// the fault was observed.
type SizeCallback func(err error, n int)

// ErrorCallback reports completion of an all-or-error operation.
type ErrorCallback func(err error)

// Release relinquishes ownership of an exclusively held resource. It must be
// called exactly once by the operation it was handed to.
type Release func()

// ReadStream is the read half of an asynchronous byte stream. At most one
// read may be outstanding; issuing a second before the callback has fired is
// a fatal programming error, not a recoverable condition.
type ReadStream interface {
	AsyncReadSome(p []byte, cb SizeCallback)
}

// WriteStream is the write half. The same single-outstanding rule applies,
// and the caller keeps ownership of p until the callback fires.
type WriteStream interface {
	AsyncWriteSome(p []byte, cb SizeCallback)
}

// Stream is a bidirectional asynchronous byte stream.
type Stream interface {
	ReadStream
	WriteStream
}
