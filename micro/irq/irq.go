// Package irq models the interrupt controller seen by the drivers in this
// library: a fixed vector table with per-line enables. A driver registers
// its handlers at construction; the hardware model (or, on a real target,
// the vendor interrupt controller glue) delivers interrupts via Trigger.
//
// Handlers run in "interrupt context": they must only read and clear
// hardware status and post deferred tasks, never touch driver buffer state.
package irq

// Line identifies one interrupt vector.
type Line uint8

// NumLines matches the vector count of the modelled NVIC.
const NumLines = 128

// Controller is an explicitly owned vector table. It is not goroutine-safe;
// configuration and delivery belong to the single cooperative context.
type Controller struct {
	handlers [NumLines]func()
	enabled  [NumLines]bool
}

// NewController returns a controller with all lines disabled.
func NewController() *Controller { return &Controller{} }

// SetVector installs fn as the handler for line, replacing any previous one.
func (c *Controller) SetVector(line Line, fn func()) {
	c.handlers[line] = fn
}

// Enable allows delivery on line. Enabling a line with no handler installed
// is a wiring bug and halts.
func (c *Controller) Enable(line Line) {
	if c.handlers[line] == nil {
		panic("irq: enable of line with no vector")
	}
	c.enabled[line] = true
}

// Disable masks delivery on line. The vector stays installed.
func (c *Controller) Disable(line Line) {
	c.enabled[line] = false
}

// Enabled reports whether line is currently unmasked.
func (c *Controller) Enabled(line Line) bool { return c.enabled[line] }

// Trigger delivers an interrupt on line, invoking its handler synchronously.
// Triggers on masked lines are dropped, as the hardware would.
func (c *Controller) Trigger(line Line) {
	if !c.enabled[line] {
		return
	}
	c.handlers[line]()
}
