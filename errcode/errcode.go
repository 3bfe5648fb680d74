package errcode

import "errors"

// Code is a stable error identifier for the asynchronous I/O core.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// DMA stream terminal status, either direction.
	DMAStreamTransferError Code = "dma_stream_transfer_error"
	DMAStreamFIFOError     Code = "dma_stream_fifo_error"

	// Serial-hardware faults, receive path only. Distinguished by reading
	// the status register at the moment of a DMA transfer error.
	UARTOverrun Code = "uart_overrun"
	UARTFraming Code = "uart_framing"
	UARTNoise   Code = "uart_noise"

	// Software-detected: the consumer failed to keep pace with the receive
	// DMA and unread data was overwritten. Distinct from UARTOverrun.
	UARTBufferOverrun Code = "uart_buffer_overrun"

	// Stream helper faults.
	ReadUntilOverflow Code = "read_until_overflow"

	Error Code = "error" // generic fallback
)

// E is an optional wrapper for when context and a cause are worth keeping.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from anywhere in err's chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	var x interface{ Code() Code }
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
