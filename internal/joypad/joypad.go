// Package joypad models the 8-key matrix exposed at FF00, grounded on the
// teacher's internal/bus.go JOYP read/write and updateJoypadIRQ logic.
package joypad

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"

// Key identifies one of the eight buttons.
type Key int

const (
	Right Key = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

const (
	bitRight = 1 << 0
	bitLeft  = 1 << 1
	bitUp    = 1 << 2
	bitDown  = 1 << 3
	bitA     = 1 << 4
	bitB     = 1 << 5
	bitSel   = 1 << 6
	bitStart = 1 << 7
)

func bitFor(k Key) byte {
	switch k {
	case Right:
		return bitRight
	case Left:
		return bitLeft
	case Up:
		return bitUp
	case Down:
		return bitDown
	case A:
		return bitA
	case B:
		return bitB
	case Select:
		return bitSel
	case Start:
		return bitStart
	}
	return 0
}

// Joypad tracks which buttons are pressed and the FF00 select nibble.
type Joypad struct {
	pressed byte // bitmask, set bit = pressed
	selNib  byte // bits 5-4 as last written
	lower4  byte // last computed active-low lower nibble, for edge detection

	ints *interrupt.Controller
}

func New(ints *interrupt.Controller) *Joypad {
	return &Joypad{ints: ints}
}

// Down marks a key pressed and raises the Joypad interrupt on a 1->0 edge
// of the currently-selected lower nibble.
func (j *Joypad) Down(k Key) {
	j.pressed |= bitFor(k)
	j.recompute()
}

// Up marks a key released.
func (j *Joypad) Up(k Key) {
	j.pressed &^= bitFor(k)
	j.recompute()
}

// WriteSelect stores the FF00 select nibble (bits 5-4).
func (j *Joypad) WriteSelect(v byte) {
	j.selNib = v & 0x30
	j.recompute()
}

// Read returns the FF00 value: bits 7-6 read as 1, bits 5-4 reflect
// selection, bits 3-0 are active-low per the selected group(s).
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selNib & 0x30) | (0x0F &^ j.pressedMask())
}

// pressedMask returns, per currently-selected group(s), which of the low
// four lines are pulled low (i.e. pressed) -- the inverse of the active-low
// register bits, kept this way round so edge detection below reads naturally.
func (j *Joypad) pressedMask() byte { return PressedMask(j.selNib, j.pressed) }

// PressedMask computes, for an arbitrary select-nibble/pressed-mask pair,
// which of JOYP's low four lines are pulled low by the selected group(s).
// The bit layout matches internal/bus.Bus's Joyp* constants (bit0=Right,
// ... bit7=Start), so internal/bus.Bus -- which keeps its own
// joypSelect/joypad fields directly, see bus_test.go -- drives this same
// function against those fields instead of a parallel reimplementation.
func PressedMask(selNib, pressed byte) byte {
	var lo byte
	if selNib&0x10 == 0 { // P14 low selects D-Pad
		if pressed&bitRight != 0 {
			lo |= 0x01
		}
		if pressed&bitLeft != 0 {
			lo |= 0x02
		}
		if pressed&bitUp != 0 {
			lo |= 0x04
		}
		if pressed&bitDown != 0 {
			lo |= 0x08
		}
	}
	if selNib&0x20 == 0 { // P15 low selects buttons
		if pressed&bitA != 0 {
			lo |= 0x01
		}
		if pressed&bitB != 0 {
			lo |= 0x02
		}
		if pressed&bitSel != 0 {
			lo |= 0x04
		}
		if pressed&bitStart != 0 {
			lo |= 0x08
		}
	}
	return lo
}

func (j *Joypad) recompute() {
	newMask := j.pressedMask()
	// A line pulled low (newly pressed) is a 1->0 edge on the real,
	// active-low pin -- i.e. a 0->1 edge on this pressed-mask view.
	risingEdge := newMask &^ j.lower4
	if risingEdge != 0 && j.ints != nil {
		j.ints.Request(interrupt.Joypad)
	}
	j.lower4 = newMask
}
