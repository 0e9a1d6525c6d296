package timer

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

func TestWriteDIVResetsToZero(t *testing.T) {
	ic := &interrupt.Controller{}
	tm := New(ic)
	tm.Tick(1000)
	if tm.DIV == 0 {
		t.Fatalf("DIV should have advanced after 1000 cycles")
	}
	tm.WriteDIV()
	if tm.DIV != 0 {
		t.Fatalf("DIV = %d after write, want 0", tm.DIV)
	}
}

func TestTIMAOverflowReloadsAndRequestsInterrupt(t *testing.T) {
	ic := &interrupt.Controller{IE: 0xFF}
	tm := New(ic)
	tm.WriteTAC(0x05) // enabled, input clock select 01 -> bit3 (period 16 cycles)
	tm.WriteTMA(0xAB)
	tm.TIMA = 0xFF

	// Drive enough cycles for a falling edge on bit 3 to roll TIMA over,
	// then for the 4-cycle reload delay to elapse.
	tm.Tick(20)

	if tm.TIMA != 0xAB {
		t.Fatalf("TIMA = %#02x after overflow+reload, want %#02x", tm.TIMA, 0xAB)
	}
	if ic.Pending()&(1<<interrupt.Timer) == 0 {
		t.Fatalf("Timer interrupt was not requested on overflow")
	}
}

func TestWriteTIMADuringReloadCancelsIt(t *testing.T) {
	ic := &interrupt.Controller{}
	tm := New(ic)
	tm.WriteTAC(0x05)
	tm.WriteTMA(0xAB)
	tm.TIMA = 0xFF
	tm.Tick(16) // cause the overflow, arm the 4-cycle reload delay
	if tm.TIMA != 0x00 {
		t.Fatalf("TIMA = %#02x right after overflow, want 0", tm.TIMA)
	}
	tm.WriteTIMA(0x42)
	tm.Tick(8)
	if tm.TIMA != 0x42 {
		t.Fatalf("TIMA = %#02x, write during reload should have stuck", tm.TIMA)
	}
}
