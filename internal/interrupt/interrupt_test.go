package interrupt

import "testing"

func TestRequestAndPending(t *testing.T) {
	c := &Controller{IE: 0x1F}
	c.Request(Timer)
	if got := c.Pending(); got != 1<<Timer {
		t.Fatalf("Pending() = %#02x, want %#02x", got, 1<<Timer)
	}
}

func TestPendingMaskedByIE(t *testing.T) {
	c := &Controller{IE: 0x00}
	c.Request(VBlank)
	if got := c.Pending(); got != 0 {
		t.Fatalf("Pending() = %#02x, want 0 when IE masks it out", got)
	}
}

func TestEIDelayedOneInstruction(t *testing.T) {
	c := &Controller{}
	c.EI()
	if c.IME() {
		t.Fatalf("IME became true before the delay elapsed")
	}
	c.TickDelay() // boundary after the instruction following EI
	if !c.IME() {
		t.Fatalf("IME should be true after one TickDelay call")
	}
}

func TestDIClearsDelay(t *testing.T) {
	c := &Controller{}
	c.EI()
	c.DI()
	c.TickDelay()
	if c.IME() {
		t.Fatalf("DI should cancel a pending EI")
	}
}

func TestRETIImmediate(t *testing.T) {
	c := &Controller{}
	c.RETI()
	if !c.IME() {
		t.Fatalf("RETI should enable IME with no delay")
	}
}

func TestAckClearsIFBit(t *testing.T) {
	c := &Controller{}
	c.Request(Joypad)
	c.Ack(Joypad)
	if c.IF != 0 {
		t.Fatalf("IF = %#02x after Ack, want 0", c.IF)
	}
}
