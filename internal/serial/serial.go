// Package serial is a register-accepting stub for the link-cable port.
// Spec.md names serial-link transfer an explicit non-goal; SB/SC are
// accepted and a transfer completes immediately (no peer), firing the
// Serial interrupt -- matching the teacher's bus.go handling, which test
// ROMs such as Blargg's cpu_instrs rely on to report pass/fail.
package serial

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"

type Serial struct {
	SB byte // FF01
	sc byte // FF02, bits 7 and 0 meaningful

	sink func(byte) // optional observer, e.g. a blargg-test harness

	ints *interrupt.Controller
}

func New(ints *interrupt.Controller) *Serial { return &Serial{ints: ints} }

// SetSink installs a callback invoked with each byte "transmitted".
func (s *Serial) SetSink(fn func(byte)) { s.sink = fn }

func (s *Serial) WriteSB(v byte) { s.SB = v }

// ReadSC returns SC with unused bits read as 1 (bit7 transfer-in-progress
// reads back 0 here since transfers complete synchronously).
func (s *Serial) ReadSC() byte { return 0x7E | (s.sc & 0x81) }

func (s *Serial) WriteSC(v byte) {
	s.sc = v & 0x81
	if s.sc&0x80 != 0 {
		if s.sink != nil {
			s.sink(s.SB)
		}
		if s.ints != nil {
			s.ints.Request(interrupt.Serial)
		}
		s.sc &^= 0x80
	}
}
