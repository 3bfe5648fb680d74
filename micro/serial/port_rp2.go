//go:build rp2040 || rp2350

package serial

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// uartx's UART satisfies Port directly on RP2 targets.
var _ Port = (*uartx.UART)(nil)

// Open configures a hardware serial unit and returns it as a Port. Defaults
// inside uartx apply when baud is zero.
func Open(id string, baud uint32, tx, rx int) (Port, bool) {
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, false
	}
	_ = hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	})
	return hw, true
}
