package joypad

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

func TestReadReflectsSelectedGroup(t *testing.T) {
	ic := &interrupt.Controller{}
	j := New(ic)
	j.Down(A)
	j.WriteSelect(0x20) // P14=0 selects D-Pad; A shouldn't show up
	if got := j.Read() & 0x0F; got != 0x0F {
		t.Fatalf("D-Pad read = %#02x while A held, want 0F (unaffected)", got)
	}
	j.WriteSelect(0x10) // P15=0 selects buttons
	if got := j.Read() & 0x0F; got&0x01 != 0 {
		t.Fatalf("A bit not cleared when buttons selected and A held: %#02x", got)
	}
}

func TestKeyDownRaisesInterruptOnEdge(t *testing.T) {
	ic := &interrupt.Controller{IE: 0xFF}
	j := New(ic)
	j.WriteSelect(0x10) // select buttons
	j.Down(Start)
	if ic.Pending()&(1<<interrupt.Joypad) == 0 {
		t.Fatalf("Joypad interrupt not requested on key-down edge")
	}
}

func TestKeyUpDoesNotReraise(t *testing.T) {
	ic := &interrupt.Controller{IE: 0xFF}
	j := New(ic)
	j.WriteSelect(0x10)
	j.Down(Start)
	ic.Ack(interrupt.Joypad)
	j.Up(Start)
	if ic.Pending()&(1<<interrupt.Joypad) != 0 {
		t.Fatalf("key-up should not raise the Joypad interrupt")
	}
}
