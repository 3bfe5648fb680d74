// Package serial bridges the asynchronous stream world and conventional
// blocking serial ports, in both directions: PortStream lifts a blocking
// port into an async stream, BlockingPort wraps an async stream for code
// that expects a drivers.UART.
package serial

import "context"

// Port is a buffered serial port with readiness signalling. On RP2 targets
// uartx.UART satisfies it directly; on hosts anything with the same shape
// (a pty wrapper, a loopback) will do.
type Port interface {
	// TX
	WriteByte(b byte) error
	Write(p []byte) (int, error)

	// RX
	Buffered() int
	Read(p []byte) (int, error)
	Readable() <-chan struct{}
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}
