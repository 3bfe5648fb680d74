package stm32

import "sync/atomic"

// Reg32 is one 32-bit control/status register cell. Access goes through
// atomic loads and stores so interrupt-context reads always observe
// task-context writes and vice versa; the method set follows the usual
// volatile-register vocabulary.
type Reg32 struct {
	v atomic.Uint32
}

// Get returns the register value.
func (r *Reg32) Get() uint32 { return r.v.Load() }

// Set replaces the register value.
func (r *Reg32) Set(value uint32) { r.v.Store(value) }

// SetBits sets the given bits, leaving the rest untouched.
func (r *Reg32) SetBits(bits uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

// ClearBits clears the given bits, leaving the rest untouched.
func (r *Reg32) ClearBits(bits uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old&^bits) {
			return
		}
	}
}

// HasBits reports whether any of the given bits are set.
func (r *Reg32) HasBits(bits uint32) bool { return r.v.Load()&bits != 0 }

// RegAddr is a DMA address register. The modelled peripheral is 32-bit, but
// the cell is host-pointer width so the simulated DMA engine can move real
// memory through it.
type RegAddr struct {
	v atomic.Uintptr
}

// Get returns the programmed address.
func (r *RegAddr) Get() uintptr { return r.v.Load() }

// Set programs the address.
func (r *RegAddr) Set(addr uintptr) { r.v.Store(addr) }
