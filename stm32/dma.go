package stm32

import "github.com/Quadra-NSL/mjlib/micro/irq"

// dmaChannel binds one DMA stream to a serial direction: the stream's
// register block, its channel-select value, the status/clear register half
// it reports through, the per-stream flag masks within that half, and its
// interrupt line. All immutable, computed once at construction from the
// serial unit identity.
type dmaChannel struct {
	stream  *DMAStream
	channel uint32 // CHSEL value, already shifted

	status      *Reg32 // LISR or HISR
	statusClear *Reg32 // LIFCR or HIFCR

	tcif  uint32
	htif  uint32
	teif  uint32
	dmeif uint32
	feif  uint32

	irq irq.Line
}

func (c *dmaChannel) allStatus() uint32 {
	return c.tcif | c.htif | c.teif | c.dmeif | c.feif
}

func newDMAChannel(d *DMA, stream int, channel uint32, line irq.Line) dmaChannel {
	shift := dmaStatusShift(stream)
	ch := dmaChannel{
		stream:  &d.Stream[stream],
		channel: channel << DMA_SxCR_CHSEL_Pos,
		tcif:    dmaStatusTCIF << shift,
		htif:    dmaStatusHTIF << shift,
		teif:    dmaStatusTEIF << shift,
		dmeif:   dmaStatusDMEIF << shift,
		feif:    dmaStatusFEIF << shift,
		irq:     line,
	}
	if stream < 4 {
		ch.status, ch.statusClear = &d.LISR, &d.LIFCR
	} else {
		ch.status, ch.statusClear = &d.HISR, &d.HIFCR
	}
	return ch
}

// UARTID names one of the six serial units, which fixes the DMA stream pair
// and the interrupt lines.
type UARTID uint8

const (
	UART1 UARTID = iota + 1
	UART2
	UART3
	UART4
	UART5
	UART6
)

// NVIC vector numbers (STM32F446).
func dma1StreamIRQ(stream int) irq.Line {
	if stream < 7 {
		return irq.Line(11 + stream)
	}
	return 47
}

func dma2StreamIRQ(stream int) irq.Line {
	if stream < 5 {
		return irq.Line(56 + stream)
	}
	return irq.Line(68 + stream - 5)
}

// irqLine is the serial unit's own interrupt line (used for idle detection).
func (id UARTID) irqLine() irq.Line {
	switch id {
	case UART1:
		return 37
	case UART2:
		return 38
	case UART3:
		return 39
	case UART4:
		return 52
	case UART5:
		return 53
	case UART6:
		return 71
	}
	panic("stm32: unknown serial unit")
}

// dmaChannels returns the (transmit, receive) channel bindings for the
// serial unit. The stream/channel assignment is fixed by the hardware; when
// the matrix offers alternatives the first listed option is used.
func (id UARTID) dmaChannels(dma1, dma2 *DMA) (tx, rx dmaChannel) {
	switch id {
	case UART1:
		return newDMAChannel(dma2, 7, 4, dma2StreamIRQ(7)),
			newDMAChannel(dma2, 2, 4, dma2StreamIRQ(2))
	case UART2:
		return newDMAChannel(dma1, 6, 4, dma1StreamIRQ(6)),
			newDMAChannel(dma1, 5, 4, dma1StreamIRQ(5))
	case UART3:
		return newDMAChannel(dma1, 3, 4, dma1StreamIRQ(3)),
			newDMAChannel(dma1, 1, 4, dma1StreamIRQ(1))
	case UART4:
		return newDMAChannel(dma1, 4, 4, dma1StreamIRQ(4)),
			newDMAChannel(dma1, 2, 4, dma1StreamIRQ(2))
	case UART5:
		return newDMAChannel(dma1, 7, 4, dma1StreamIRQ(7)),
			newDMAChannel(dma1, 0, 4, dma1StreamIRQ(0))
	case UART6:
		return newDMAChannel(dma2, 6, 5, dma2StreamIRQ(6)),
			newDMAChannel(dma2, 1, 5, dma2StreamIRQ(1))
	}
	panic("stm32: unknown serial unit")
}
