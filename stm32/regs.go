package stm32

// Register blocks and bit positions for the modelled USART and DMA
// peripherals, after RM0390 (STM32F446). Only the registers and bits this
// driver touches are modelled; names keep the reference-manual spelling so
// the code reads against the manual.

// USART is the serial unit register block.
type USART struct {
	SR   Reg32 // status
	DR   Reg32 // data
	BRR  Reg32 // baud rate divisor
	CR1  Reg32 // control 1: enables, word length, parity, IDLE interrupt
	CR2  Reg32 // control 2: stop bits
	CR3  Reg32 // control 3: DMA requests
	GTPR Reg32 // guard time / prescaler
}

// USART_SR bits.
const (
	USART_SR_PE   = 1 << 0 // parity error
	USART_SR_FE   = 1 << 1 // framing error
	USART_SR_NF   = 1 << 2 // noise flag
	USART_SR_ORE  = 1 << 3 // overrun error
	USART_SR_IDLE = 1 << 4 // idle line detected
	USART_SR_RXNE = 1 << 5
	USART_SR_TC   = 1 << 6
	USART_SR_TXE  = 1 << 7
)

// USART_CR1 bits.
const (
	USART_CR1_RE     = 1 << 2
	USART_CR1_TE     = 1 << 3
	USART_CR1_IDLEIE = 1 << 4
	USART_CR1_RXNEIE = 1 << 5
	USART_CR1_PS     = 1 << 9  // parity selection: 0 even, 1 odd
	USART_CR1_PCE    = 1 << 10 // parity control enable
	USART_CR1_M      = 1 << 12 // word length: 9 bits when parity is on
	USART_CR1_UE     = 1 << 13 // USART enable
)

// USART_CR3 bits.
const (
	USART_CR3_DMAR = 1 << 6 // DMA enable receiver
	USART_CR3_DMAT = 1 << 7 // DMA enable transmitter
)

// DMAStream is one stream's register block within a DMA controller.
type DMAStream struct {
	CR   Reg32   // configuration
	NDTR Reg32   // number of data items remaining
	PAR  RegAddr // peripheral address
	M0AR RegAddr // memory 0 address
	M1AR RegAddr // memory 1 address (double-buffer, unused here)
	FCR  Reg32   // FIFO control
}

// DMA is a DMA controller: interrupt status/clear registers plus 8 streams.
type DMA struct {
	LISR  Reg32 // status, streams 0-3
	HISR  Reg32 // status, streams 4-7
	LIFCR Reg32 // status clear, streams 0-3
	HIFCR Reg32 // status clear, streams 4-7

	Stream [8]DMAStream
}

// DMA_SxCR bits.
const (
	DMA_SxCR_EN     = 1 << 0
	DMA_SxCR_DMEIE  = 1 << 1
	DMA_SxCR_TEIE   = 1 << 2
	DMA_SxCR_HTIE   = 1 << 3
	DMA_SxCR_TCIE   = 1 << 4
	DMA_SxCR_PFCTRL = 1 << 5

	DMA_SxCR_DIR_Pos = 6
	DMA_MemoryToPeriph = 0x1 << DMA_SxCR_DIR_Pos // 00 is peripheral-to-memory

	DMA_SxCR_CIRC = 1 << 8
	DMA_SxCR_PINC = 1 << 9
	DMA_SxCR_MINC = 1 << 10

	DMA_SxCR_PSIZE_Pos = 11
	DMA_SxCR_MSIZE_Pos = 13

	DMA_SxCR_CHSEL_Pos = 25
)

// Per-stream status flags, before the per-stream shift within LISR/HISR.
const (
	dmaStatusFEIF  = 1 << 0
	dmaStatusDMEIF = 1 << 2
	dmaStatusTEIF  = 1 << 3
	dmaStatusHTIF  = 1 << 4
	dmaStatusTCIF  = 1 << 5
)

// dmaStatusShift returns the bit offset of a stream's flag group within its
// status register half. Streams map pairwise: 0/4 at 0, 1/5 at 6, 2/6 at 16,
// 3/7 at 22.
func dmaStatusShift(stream int) uint {
	switch stream % 4 {
	case 0:
		return 0
	case 1:
		return 6
	case 2:
		return 16
	default:
		return 22
	}
}
