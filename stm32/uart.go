// Package stm32 implements an interrupt- and DMA-driven asynchronous UART
// over a modelled STM32F4 register set, together with the in-package
// simulator that stands in for the silicon on host builds.
//
// The driver follows a strict two-context discipline: interrupt handlers do
// register-only bookkeeping and post a deferred task; every buffer and
// request mutation happens in deferred-task context, one task at a time.
package stm32

import (
	"unsafe"

	"github.com/Quadra-NSL/mjlib/errcode"
	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/Quadra-NSL/mjlib/micro/events"
	"github.com/Quadra-NSL/mjlib/micro/irq"
	"github.com/Quadra-NSL/mjlib/x/mathx"
)

// Pin identifies a package pin. Pin-to-unit routing is board glue outside
// this driver; here a pin only decides whether a direction is wired at all.
type Pin int16

// NoPin disables the corresponding direction.
const NoPin Pin = -1

// Parity selects the parity setting for the serial format.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// Target is the hardware a driver instance binds to: the serial unit's
// register block and identity, the two DMA controllers, and the interrupt
// controller the driver registers its vectors with. Board glue locates
// these; the driver owns them afterwards.
type Target struct {
	USART *USART
	ID    UARTID
	DMA1  *DMA
	DMA2  *DMA
	IRQ   *irq.Controller

	// ClockHz is the peripheral bus clock feeding the baud generator.
	ClockHz uint32
}

// DefaultClockHz is the APB1 clock assumed when Target.ClockHz is zero.
const DefaultClockHz = 45_000_000

// Options configures one driver instance.
type Options struct {
	TX       Pin
	RX       Pin
	BaudRate uint32 // defaults to 115200
	Parity   Parity
}

// RxBufferSize is the receive ring capacity in cells. The ring buys time
// between interrupt delivery and the next AsyncReadSome even at high rates.
const RxBufferSize = 64

// rxSentinel marks an unwritten ring cell. Cells are 16 bits wide so the
// sentinel can never collide with a received byte.
const rxSentinel = 0xffff

// AsyncUART is an asynchronous serial byte transport: one outstanding read
// and one outstanding write at a time, completions delivered through the
// deferred-execution queue. It implements async.Stream.
type AsyncUART struct {
	queue *events.Queue
	uart  *USART

	txDMA dmaChannel
	rxDMA dmaChannel

	// Receive ring, written by the DMA engine in circular mode, consumed
	// by processData. rxPos is the next cell to consume.
	rxBuffer [RxBufferSize]uint16
	rxPos    int

	readBuf      []byte
	readCB       async.SizeCallback
	pendingRxErr error

	writeCB async.SizeCallback
	txData  []byte // retained so the DMA source stays reachable
	txSize  int
}

var _ async.Stream = (*AsyncUART)(nil)

// New binds a driver to target and brings the hardware up: the receive
// channel in continuous circular mode into the ring, the transmit channel
// ready for one-shot arming per write, interrupt vectors installed and
// enabled. queue is the deferred-task facility everything completes through.
func New(queue *events.Queue, target Target, opts Options) *AsyncUART {
	if queue == nil || target.USART == nil || target.IRQ == nil {
		panic("stm32: incomplete uart target")
	}
	if opts.TX == NoPin && opts.RX == NoPin {
		panic("stm32: uart needs at least one direction")
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = 115200
	}

	u := &AsyncUART{queue: queue, uart: target.USART}
	for i := range u.rxBuffer {
		u.rxBuffer[i] = rxSentinel
	}

	u.txDMA, u.rxDMA = target.ID.dmaChannels(target.DMA1, target.DMA2)

	clock := target.ClockHz
	if clock == 0 {
		clock = DefaultClockHz
	}
	u.uart.BRR.Set(mathx.Clamp(clock/opts.BaudRate, 16, 0xffff))

	cr1 := uint32(USART_CR1_UE)
	switch opts.Parity {
	case ParityEven:
		cr1 |= USART_CR1_PCE | USART_CR1_M
	case ParityOdd:
		cr1 |= USART_CR1_PCE | USART_CR1_PS | USART_CR1_M
	}

	drAddr := uintptr(unsafe.Pointer(&u.uart.DR))

	if opts.TX != NoPin {
		cr1 |= USART_CR1_TE

		u.txDMA.stream.PAR.Set(drAddr)
		u.txDMA.stream.CR.Set(u.txDMA.channel |
			DMA_SxCR_MINC |
			DMA_MemoryToPeriph |
			DMA_SxCR_TCIE | DMA_SxCR_TEIE)

		target.IRQ.SetVector(u.txDMA.irq, u.handleTransmit)
		target.IRQ.Enable(u.txDMA.irq)
	}

	if opts.RX != NoPin {
		cr1 |= USART_CR1_RE | USART_CR1_IDLEIE

		u.rxDMA.stream.PAR.Set(drAddr)
		u.rxDMA.stream.CR.Set(u.rxDMA.channel |
			DMA_SxCR_MINC |
			(0x1 << DMA_SxCR_MSIZE_Pos) | // 16-bit memory
			(0x1 << DMA_SxCR_PSIZE_Pos) | // 16-bit peripheral
			DMA_SxCR_CIRC |
			DMA_SxCR_TCIE | DMA_SxCR_TEIE)

		target.IRQ.SetVector(u.rxDMA.irq, u.handleReceive)
		target.IRQ.Enable(u.rxDMA.irq)

		// Idle times on the bus flush partial messages below the DMA
		// threshold.
		target.IRQ.SetVector(target.ID.irqLine(), u.handleIdle)
		target.IRQ.Enable(target.ID.irqLine())

		// The receiver runs continuously in circular mode.
		u.rxDMA.stream.M0AR.Set(uintptr(unsafe.Pointer(&u.rxBuffer[0])))
		u.rxDMA.statusClear.SetBits(u.rxDMA.allStatus())
		u.rxDMA.stream.NDTR.Set(RxBufferSize)
		u.rxDMA.stream.CR.SetBits(DMA_SxCR_EN)

		u.uart.CR3.SetBits(USART_CR3_DMAR)
	}

	u.uart.CR1.Set(cr1)
	return u
}

// AsyncReadSome registers p and cb as the outstanding read, then runs the
// shared processing step so data already sitting in the ring is delivered
// without waiting for another interrupt. At most one read may be
// outstanding; a second is a fatal precondition violation.
func (u *AsyncUART) AsyncReadSome(p []byte, cb async.SizeCallback) {
	if u.readCB != nil {
		panic("stm32: uart read already outstanding")
	}
	if len(p) == 0 {
		panic("stm32: uart read with empty destination")
	}

	u.readBuf = p
	u.readCB = cb

	u.processData()
}

// AsyncWriteSome arms the transmit channel with p and registers cb to fire
// from the transmit-completion deferred task. The caller owns p until then.
// At most one write may be outstanding.
func (u *AsyncUART) AsyncWriteSome(p []byte, cb async.SizeCallback) {
	if u.writeCB != nil {
		panic("stm32: uart write already outstanding")
	}
	if len(p) == 0 {
		panic("stm32: uart write with empty source")
	}

	u.writeCB = cb
	u.txData = p
	u.txSize = len(p)

	// AN4031, 4.2: clear all status flags before enabling the stream.
	u.txDMA.statusClear.SetBits(u.txDMA.allStatus())

	u.txDMA.stream.NDTR.Set(uint32(len(p)))
	u.txDMA.stream.M0AR.Set(uintptr(unsafe.Pointer(&p[0])))
	u.txDMA.stream.CR.SetBits(DMA_SxCR_EN)

	u.uart.CR3.SetBits(USART_CR3_DMAT)
}

// handleTransmit runs in interrupt context on transmit-channel events. It
// classifies the terminal status (errors take precedence over completion),
// computes the bytes actually sent from the remaining-count register, clears
// what it observed and posts the completion.
func (u *AsyncUART) handleTransmit() {
	sent := u.txSize - int(u.txDMA.stream.NDTR.Get())

	// The stream disables itself at the end of a one-shot transfer.
	if u.txDMA.stream.CR.HasBits(DMA_SxCR_EN) {
		panic("stm32: transmit interrupt with stream still enabled")
	}

	// Stop the serial unit requesting transmit DMA.
	u.uart.CR3.ClearBits(USART_CR3_DMAT)

	var err error
	status := u.txDMA.status.Get()
	switch {
	case status&u.txDMA.teif != 0:
		u.txDMA.statusClear.SetBits(u.txDMA.teif)
		err = errcode.DMAStreamTransferError
	case status&u.txDMA.feif != 0:
		u.txDMA.statusClear.SetBits(u.txDMA.feif)
		err = errcode.DMAStreamFIFOError
	case status&u.txDMA.tcif != 0:
		u.txDMA.statusClear.SetBits(u.txDMA.tcif)
	default:
		panic("stm32: spurious transmit interrupt")
	}

	u.queue.Call(func() { u.finishTransmit(err, sent) })
}

// finishTransmit runs in task context: it retires the outstanding write and
// posts the caller's callback as its own task, so the callback can
// immediately issue the next write.
func (u *AsyncUART) finishTransmit(err error, sent int) {
	cb := u.writeCB
	u.writeCB = nil
	u.txData = nil
	u.queue.Call(func() { cb(err, sent) })
}

// handleReceive runs in interrupt context on receive-channel events. Errors
// are latched into the pending receive error; data itself stays in the ring
// for the deferred processing step.
func (u *AsyncUART) handleReceive() {
	status := u.rxDMA.status.Get()
	switch {
	case status&u.rxDMA.teif != 0:
		u.rxDMA.statusClear.SetBits(u.rxDMA.teif)

		// The error-clearing protocol wants the status register read
		// followed by the data register; that read also tells us which
		// serial fault, if any, caused the transfer error.
		sr := u.uart.SR.Get()
		_ = u.uart.DR.Get()
		u.uart.SR.ClearBits(USART_SR_ORE | USART_SR_FE | USART_SR_NF)

		switch {
		case sr&USART_SR_ORE != 0:
			u.pendingRxErr = errcode.UARTOverrun
		case sr&USART_SR_FE != 0:
			u.pendingRxErr = errcode.UARTFraming
		case sr&USART_SR_NF != 0:
			u.pendingRxErr = errcode.UARTNoise
		default:
			u.pendingRxErr = errcode.DMAStreamTransferError
		}
	case status&u.rxDMA.feif != 0:
		u.rxDMA.statusClear.SetBits(u.rxDMA.feif)
		u.pendingRxErr = errcode.DMAStreamFIFOError
	case status&u.rxDMA.tcif != 0:
		u.rxDMA.statusClear.SetBits(u.rxDMA.tcif)
	default:
		panic("stm32: spurious receive interrupt")
	}

	u.queue.Call(u.processData)
}

// handleIdle runs in interrupt context on the serial unit's own interrupt:
// an idle line means a partial message smaller than the DMA threshold is
// sitting in the ring and should be flushed to any waiting reader.
func (u *AsyncUART) handleIdle() {
	if !u.uart.SR.HasBits(USART_SR_IDLE) {
		return
	}

	// Clear the idle condition: status register read, then data register.
	_ = u.uart.SR.Get()
	_ = u.uart.DR.Get()
	u.uart.SR.ClearBits(USART_SR_IDLE)

	u.queue.Call(u.processData)
}

// processData is the single deferred processing step for the receive path.
// It runs in task context, from a posted interrupt follow-up or directly
// from AsyncReadSome.
func (u *AsyncUART) processData() {
	if u.readBuf == nil {
		// No outstanding read; data keeps accumulating in the ring.
		return
	}

	if u.rxBuffer[u.rxPos] == rxSentinel && u.pendingRxErr == nil {
		// Nothing new: no data and no error. Never deliver (nil, 0).
		return
	}

	lastPos := (u.rxPos + RxBufferSize - 1) % RxBufferSize
	if u.rxBuffer[lastPos] != rxSentinel {
		// The producer lapped the consumer: we no longer know where the
		// DMA engine is writing.
		u.pendingRxErr = errcode.UARTBufferOverrun
		if u.rxDMA.stream.CR.HasBits(DMA_SxCR_EN) {
			// Stop the stream and return; its completion interrupt will
			// bring us back here.
			u.rxDMA.stream.CR.ClearBits(DMA_SxCR_EN)
			return
		}
		// Already stopped: deliver what we have and resynchronise below.
	}

	n := 0
	for n < len(u.readBuf) && u.rxBuffer[u.rxPos] != rxSentinel {
		u.readBuf[n] = byte(u.rxBuffer[u.rxPos])
		u.rxBuffer[u.rxPos] = rxSentinel
		u.rxPos = (u.rxPos + 1) % RxBufferSize
		n++
	}

	cb, err := u.readCB, u.pendingRxErr
	u.queue.Call(func() { cb(err, n) })

	u.pendingRxErr = nil
	u.readCB = nil
	u.readBuf = nil

	// If the stream got stopped (overrun resync or a hardware fault),
	// start over from a clean ring.
	if !u.rxDMA.stream.CR.HasBits(DMA_SxCR_EN) {
		for i := range u.rxBuffer {
			u.rxBuffer[i] = rxSentinel
		}
		u.rxPos = 0

		u.rxDMA.statusClear.SetBits(u.rxDMA.allStatus())
		u.rxDMA.stream.NDTR.Set(RxBufferSize)
		u.rxDMA.stream.CR.SetBits(DMA_SxCR_EN)
		u.uart.CR3.SetBits(USART_CR3_DMAR)
	}
}
