package stm32

import (
	"unsafe"

	"github.com/Quadra-NSL/mjlib/micro/irq"
)

// Sim models the silicon side of the driver on host builds: the register
// blocks, the DMA engines moving real memory through the address registers,
// and interrupt delivery. Tests and the host selftest drive the wire through
// it; the driver under test cannot tell it from hardware.
//
// Like the driver, Sim belongs to the single cooperative context.
type Sim struct {
	usart USART
	dma1  DMA
	dma2  DMA
	irqc  *irq.Controller

	id    UARTID
	txDMA dmaChannel
	rxDMA dmaChannel

	// Receive engine state: next cell index in the circular target buffer
	// and whether the stream was observed enabled last time around.
	rxWrite int
	rxWasEN bool

	txSent    []byte
	rxDropped int
}

// NewSim builds a simulated target for one serial unit.
func NewSim(id UARTID) *Sim {
	s := &Sim{id: id, irqc: irq.NewController()}
	s.txDMA, s.rxDMA = id.dmaChannels(&s.dma1, &s.dma2)
	return s
}

// Target returns the hardware description a driver binds to.
func (s *Sim) Target() Target {
	return Target{
		USART: &s.usart,
		ID:    s.id,
		DMA1:  &s.dma1,
		DMA2:  &s.dma2,
		IRQ:   s.irqc,
	}
}

// IRQ exposes the interrupt controller, for tests that deliver raw lines.
func (s *Sim) IRQ() *irq.Controller { return s.irqc }

// WireRecv presents data on the receive wire, byte by byte. Bytes arriving
// while the receive path is not armed are dropped, as the hardware would
// drop them; RxDropped counts those.
func (s *Sim) WireRecv(data []byte) {
	for _, b := range data {
		s.wireRecvByte(b)
	}
}

func (s *Sim) wireRecvByte(b byte) {
	en := s.rxDMA.stream.CR.HasBits(DMA_SxCR_EN)
	if !en || !s.usart.CR3.HasBits(USART_CR3_DMAR) {
		s.rxWasEN = en
		s.rxDropped++
		return
	}

	// A freshly (re-)enabled circular stream starts from the programmed
	// address with a full count.
	if !s.rxWasEN {
		s.rxWrite = 0
		if s.rxDMA.stream.NDTR.Get() == 0 {
			s.rxDMA.stream.NDTR.Set(RxBufferSize)
		}
	}
	s.rxWasEN = true

	base := s.rxDMA.stream.M0AR.Get()
	cells := unsafe.Slice((*uint16)(unsafe.Pointer(base)), RxBufferSize)
	cells[s.rxWrite] = uint16(b)
	s.rxWrite = (s.rxWrite + 1) % RxBufferSize

	ndtr := s.rxDMA.stream.NDTR.Get() - 1
	if ndtr == 0 {
		// Circular mode: reload and signal transfer complete.
		s.rxDMA.stream.NDTR.Set(RxBufferSize)
		s.rxDMA.status.SetBits(s.rxDMA.tcif)
		s.irqc.Trigger(s.rxDMA.irq)
	} else {
		s.rxDMA.stream.NDTR.Set(ndtr)
	}
}

// WireIdle signals an idle condition on the receive wire, flushing whatever
// the engine has written so far to the driver.
func (s *Sim) WireIdle() {
	s.usart.SR.SetBits(USART_SR_IDLE)
	s.irqc.Trigger(s.id.irqLine())
}

// FaultRx injects a receive fault: a DMA transfer error with the given
// serial status bits latched (USART_SR_ORE, USART_SR_FE, USART_SR_NF, or
// none for a bare transfer error).
func (s *Sim) FaultRx(srBits uint32) {
	s.usart.SR.SetBits(srBits)
	// A transfer error disables the stream.
	s.rxDMA.stream.CR.ClearBits(DMA_SxCR_EN)
	s.rxWasEN = false
	s.rxDMA.status.SetBits(s.rxDMA.teif)
	s.irqc.Trigger(s.rxDMA.irq)
}

// FaultRxFIFO injects a receive-side FIFO error.
func (s *Sim) FaultRxFIFO() {
	s.rxDMA.status.SetBits(s.rxDMA.feif)
	s.irqc.Trigger(s.rxDMA.irq)
}

// PumpRxStop completes the receive stream's shutdown after the driver has
// cleared its enable bit: the engine finishes the in-flight beat and raises
// transfer complete. No effect while the stream is still enabled.
func (s *Sim) PumpRxStop() {
	if s.rxDMA.stream.CR.HasBits(DMA_SxCR_EN) {
		return
	}
	s.rxWasEN = false
	s.rxDMA.status.SetBits(s.rxDMA.tcif)
	s.irqc.Trigger(s.rxDMA.irq)
}

// CompleteTx drains a pending transmit transfer in full: the engine moves
// every remaining byte onto the wire, disables itself and raises transfer
// complete. Panics if no transfer is armed.
func (s *Sim) CompleteTx() {
	n := int(s.txDMA.stream.NDTR.Get())
	if !s.txDMA.stream.CR.HasBits(DMA_SxCR_EN) || n == 0 {
		panic("sim: transmit completion with no transfer armed")
	}
	s.moveTx(n)
	s.txDMA.stream.NDTR.Set(0)
	s.txDMA.stream.CR.ClearBits(DMA_SxCR_EN)
	s.txDMA.status.SetBits(s.txDMA.tcif)
	s.irqc.Trigger(s.txDMA.irq)
}

// FailTxAfter moves sent bytes onto the wire and then fails the transfer
// with a DMA transfer error.
func (s *Sim) FailTxAfter(sent int) {
	n := int(s.txDMA.stream.NDTR.Get())
	if !s.txDMA.stream.CR.HasBits(DMA_SxCR_EN) || sent > n {
		panic("sim: transmit fault with no such transfer")
	}
	s.moveTx(sent)
	s.txDMA.stream.NDTR.Set(uint32(n - sent))
	s.txDMA.stream.CR.ClearBits(DMA_SxCR_EN)
	s.txDMA.status.SetBits(s.txDMA.teif)
	s.irqc.Trigger(s.txDMA.irq)
}

func (s *Sim) moveTx(n int) {
	base := s.txDMA.stream.M0AR.Get()
	src := unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
	s.txSent = append(s.txSent, src...)
}

// TxSent returns everything the transmit engine has put on the wire.
func (s *Sim) TxSent() []byte { return s.txSent }

// TxPending reports whether a transmit transfer is armed and unfinished.
func (s *Sim) TxPending() bool {
	return s.txDMA.stream.CR.HasBits(DMA_SxCR_EN) && s.txDMA.stream.NDTR.Get() > 0
}

// RxDropped returns how many wire bytes arrived while the receive path was
// not armed.
func (s *Sim) RxDropped() int { return s.rxDropped }
