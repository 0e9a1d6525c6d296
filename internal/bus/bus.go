package bus

import (
	"fmt"
	"io"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/timer"
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, and IO: the
// full memory map (ROM/RAM banking via the cartridge, VRAM/OAM via the PPU,
// WRAM/HRAM, OAM DMA, timer, joypad, serial and interrupt registers).
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000–0xDFFF; Echo 0xE000–0xFDFF mirrors C000–DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80–0xFFFE (127 bytes)
	hram [0x7F]byte

	// PPU encapsulates VRAM/OAM and LCDC/STAT timing
	ppu *ppu.PPU

	// ints owns IE (0xFFFF) and IF (0xFF0F) and is shared with the CPU via
	// Interrupts(), so IME/priority/acknowledge logic lives in one place.
	ints *interrupt.Controller

	// JOYP and timer registers. State lives here rather than delegating to
	// internal/timer and internal/joypad because callers observe/drive the
	// individual registers (div, tima, tma, tac, joypSelect, ...) directly
	// at this level; the falling-edge/reload algorithm they share with
	// internal/timer is factored into timer.Input/timer.StepTIMA.
	joypSelect byte // bits 5-4 as last written
	joypad     byte // bitmask of pressed buttons (1=pressed), see constants below
	joypLower4 byte // last computed lower 4 bits (active-low) for interrupt edge detection

	div  byte // FF04 (upper 8 bits of internal divider)
	tima byte // FF05
	tma  byte // FF06
	tac  byte // FF07 (lower 3 bits used)

	// Timer overflow handling: when TIMA overflows, it goes to 00 then reloads from TMA after a short delay
	// during which writes to TIMA cancel the reload.
	timaReloadDelay int // cycles remaining until reload from TMA; 0 means no pending reload

	// Serial
	sb byte      // FF01 data
	sc byte      // FF02 control (bit7 start, bit0 clock source; we do immediate external)
	sw io.Writer // sink for serial output (optional)

	// Internal 16-bit divider that increments every T-cycle; DIV reads upper 8 bits
	divInternal uint16

	// DMA register (still handled here for copy trigger)
	dma byte // FF46

	// OAM DMA state
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	// Boot ROM support
	bootROM     []byte
	bootEnabled bool

	// CGB: WRAM banking (FF70), double-speed switch (FF4D)
	cgb       bool
	wramBank  byte // 1-7, selected bank for D000-DFFF; 0 behaves as 1
	wramExtra [6][0x1000]byte
	key1      byte // FF4D: bit0 armed, bit7 current speed
	doubleSpd bool

	// debug
	debugTimer bool
}

// New constructs a Bus with a ROM-only cartridge for convenience.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, wramBank: 1, ints: &interrupt.Controller{}}
	// hook PPU to request IF bits through the shared interrupt controller
	b.ppu = ppu.New(func(bit int) { b.ints.Request(bit) })
	b.ppu.SetBusReader(b.Read)
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.debugTimer = true
	}
	return b
}

// SetCGB switches the bus (WRAM banking, KEY1) and PPU into CGB mode, based
// on the cartridge header's CGB flag.
func (b *Bus) SetCGB(cgb bool) {
	b.cgb = cgb
	b.ppu.SetCGB(cgb)
}

// SetCompatPalette forwards the chosen DMG compatibility shade set to the PPU.
func (b *Bus) SetCompatPalette(set int) { b.ppu.SetCompatPalette(set) }

// SpeedSwitch performs the CGB double-speed toggle armed by a KEY1 write of
// bit0; invoked by the CPU's STOP instruction. No-op if not armed.
func (b *Bus) SpeedSwitch() {
	if b.key1&0x01 == 0 {
		return
	}
	b.key1 = 0
	b.doubleSpd = !b.doubleSpd
	b.ppu.SetDoubleSpeed(b.doubleSpd)
}

// DoubleSpeed reports whether the CPU is currently running at double speed.
func (b *Bus) DoubleSpeed() bool { return b.doubleSpd }

func (b *Bus) wramRead(addr uint16) byte {
	if addr >= 0xD000 && addr <= 0xDFFF && b.cgb && b.wramBank >= 2 {
		return b.wramExtra[b.wramBank-2][addr-0xD000]
	}
	return b.wram[addr-0xC000]
}

func (b *Bus) wramWrite(addr uint16, v byte) {
	if addr >= 0xD000 && addr <= 0xDFFF && b.cgb && b.wramBank >= 2 {
		b.wramExtra[b.wramBank-2][addr-0xD000] = v
		return
	}
	b.wram[addr-0xC000] = v
}

// PPU returns the internal PPU for read-only rendering helpers. Avoids breaking encapsulation for CPU access.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Interrupts returns the shared IE/IF/IME controller so the CPU can service
// interrupts and apply EI/DI/RETI/HALT semantics against the same state the
// bus's IO handlers request against.
func (b *Bus) Interrupts() *interrupt.Controller { return b.ints }

// Cart returns the underlying cartridge for optional battery operations (read-only interface exposure).
func (b *Bus) Cart() cart.Cartridge { return b.cart }

func (b *Bus) Read(addr uint16) byte {
	switch {
	// Cartridge ROM and External RAM (banked) are handled by the cartridge
	case addr < 0x8000:
		// DMG boot ROMs overlay 0x0000-0x00FF; CGB boot ROMs are longer
		// and additionally overlay 0x0200-0x08FF (0x0100-0x01FF stays
		// cartridge header, read by the boot ROM itself before jumping).
		if b.bootEnabled && len(b.bootROM) >= 0x100 {
			if addr < 0x0100 {
				return b.bootROM[addr]
			}
			if b.cgb && addr >= 0x0200 && int(addr) < len(b.bootROM) {
				return b.bootROM[addr]
			}
		}
		return b.cart.Read(addr)
	// VRAM (via PPU)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)

	// Work RAM 0xC000–0xDFFF (8 KiB); note upper bound is inclusive 0xDFFF
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wramRead(addr)

	// Echo RAM 0xE000–0xFDFF mirrors 0xC000–0xDDFF
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wramRead(mirror)

	// High RAM 0xFF80–0xFFFE (IE at 0xFFFF is handled separately below)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	// OAM via PPU (reads blocked during DMA)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	// IO: JOYP at 0xFF00
	case addr == 0xFF00:
		// Upper bits 7-6 read as 1, bits 5-4 reflect selection, bits 3-0 are
		// active-low per the selected group(s); joypad.PressedMask computes
		// which lines are pulled low.
		return 0xC0 | (b.joypSelect & 0x30) | (0x0F &^ joypad.PressedMask(b.joypSelect, b.joypad))
	// IO: Timers
	case addr == 0xFF04:
		return b.div
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return 0xF8 | (b.tac & 0x07)
	// Serial
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		// upper bits read as 1 except bit7 reflects transfer in progress; we complete immediately
		return 0x7E | (b.sc & 0x81)
	// LCDC/STAT/LY/LYC and scroll/window via PPU
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	// Boot ROM disable register (read returns 0xFF on DMG; keep simple)
	case addr == 0xFF50:
		return 0xFF
	// CGB: VRAM bank select, BG/OBJ palette RAM, HDMA/GDMA
	case addr == 0xFF4F, addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B,
		addr >= 0xFF51 && addr <= 0xFF55:
		return b.ppu.CPURead(addr)
	// CGB: KEY1 speed switch
	case addr == 0xFF4D:
		if !b.cgb {
			return 0xFF
		}
		v := b.key1 & 0x01
		if b.doubleSpd {
			v |= 0x80
		}
		return 0x7E | v
	// CGB: WRAM bank select
	case addr == 0xFF70:
		if !b.cgb {
			return 0xFF
		}
		return 0xF8 | b.wramBank
	// IO: IF at 0xFF0F, other IO not implemented (return 0xFF)
	case addr == 0xFF0F:
		return 0xE0 | (b.ints.IF & 0x1F)
	// IE at 0xFFFF
	case addr == 0xFFFF:
		return b.ints.IE
	}
	// Unmapped/unimplemented IO registers read as 0xFF.
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	// Cartridge control and external RAM writes
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	// VRAM via PPU
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return

	// Work RAM
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wramWrite(addr, value)
		return

	// Echo RAM mirrors C000–DDFF
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wramWrite(mirror, value)
		}
		return

	// High RAM
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	// OAM via PPU (writes ignored during DMA)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return
	// IO: JOYP at 0xFF00
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
		b.updateJoypadIRQ()
		return
	// IO: Timers
	case addr == 0xFF04:
		// Writing any value to DIV resets the internal divider and may cause a TIMA increment
		// if the timer input experiences a falling edge due to the reset.
		oldInput := b.timerInput()
		b.divInternal = 0
		b.div = 0
		if oldInput && !b.timerInput() {
			b.incrementTIMA()
		}
			if b.debugTimer {
				fmt.Printf("[TMR] DIV write -> reset (div=0000) tima=%02X tma=%02X tac=%02X reload=%d\n", b.tima, b.tma, b.tac, b.timaReloadDelay)
			}
		return
	case addr == 0xFF05:
		// Writing TIMA during a pending reload cancels the reload and sets TIMA to the written value.
		b.tima = value
		if b.timaReloadDelay > 0 {
			b.timaReloadDelay = 0
		}
			if b.debugTimer {
				fmt.Printf("[TMR] TIMA write %02X tma=%02X tac=%02X reload=%d\n", value, b.tma, b.tac, b.timaReloadDelay)
			}
		return
	case addr == 0xFF06:
		b.tma = value
			if b.debugTimer {
				fmt.Printf("[TMR] TMA write %02X (tima=%02X tac=%02X reload=%d)\n", value, b.tima, b.tac, b.timaReloadDelay)
			}
		return
	case addr == 0xFF07:
		// Changing TAC can cause a falling edge on the timer input; handle increment accordingly.
		oldInput := b.timerInput()
		b.tac = value & 0x07
		if oldInput && !b.timerInput() {
			b.incrementTIMA()
		}
			if b.debugTimer {
				fmt.Printf("[TMR] TAC write %02X (input %v->%v) tima=%02X tma=%02X reload=%d\n", b.tac, oldInput, b.timerInput(), b.tima, b.tma, b.timaReloadDelay)
			}
		return
	// Serial
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if (b.sc & 0x80) != 0 {
			// Start transfer: we do immediate completion; write byte to sink if present
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			// Request serial interrupt (IF bit 3)
			b.ints.Request(interrupt.Serial)
			// Clear transfer start bit to indicate done
			b.sc &^= 0x80
		}
		return
	// LCDC/STAT/LY/LYC and scroll/window via PPU
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		// OAM DMA: initiate 160-byte transfer from value*0x100 to FE00, 1 byte per cycle
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		return
	case addr == 0xFF50:
		// Any non-zero write disables the boot ROM overlay
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	// CGB: VRAM bank select, BG/OBJ palette RAM, HDMA/GDMA
	case addr == 0xFF4F, addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B,
		addr >= 0xFF51 && addr <= 0xFF55:
		b.ppu.CPUWrite(addr, value)
		return
	// CGB: KEY1 arms a speed switch; the CPU's STOP instruction flips doubleSpd.
	case addr == 0xFF4D:
		if b.cgb {
			b.key1 = value & 0x01
		}
		return
	// CGB: WRAM bank select (0 behaves as 1)
	case addr == 0xFF70:
		if b.cgb {
			b.wramBank = value & 0x07
			if b.wramBank == 0 {
				b.wramBank = 1
			}
		}
		return
	// IO: IF at 0xFF0F
	case addr == 0xFF0F:
		b.ints.IF = value & 0x1F
		return
	// IE at 0xFFFF
	case addr == 0xFFFF:
		b.ints.IE = value
		return
	}
	// Unhandled regions are ignored for now
}

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// SetJoypadState sets which buttons are currently pressed.
// Pass a mask using the Joyp* constants above; set bits mean pressed.
func (b *Bus) SetJoypadState(mask byte) {
	b.joypad = mask
	b.updateJoypadIRQ()
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a boot ROM to be mapped over cartridge space until
// disabled via an 0xFF50 write. A DMG boot ROM (256 bytes) overlays only
// 0x0000-0x00FF; a CGB boot ROM (2304 bytes) additionally overlays
// 0x0200-0x08FF, see Read.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, len(data))
		copy(b.bootROM, data)
		b.bootEnabled = true
	}
}

// Tick advances timers by the given number of CPU cycles.
// True-to-hardware: TIMA increments on falling edge of selected divider bit
// determined by TAC (00:bit9, 01:bit3, 10:bit5, 11:bit7), gated by TAC enable.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		oldInput := b.timerInput()
		b.divInternal++
		b.div = byte(b.divInternal >> 8)
		newInput := b.timerInput()
		falling := oldInput && !newInput

		// First, handle delayed TIMA reload if pending; on expiry, reload then allow an increment in this cycle
		if b.timaReloadDelay > 0 {
			b.timaReloadDelay--
			if b.timaReloadDelay == 0 {
				// On expiry, load TMA and request interrupt before processing any increment for this cycle
				b.tima = b.tma
				b.ints.Request(interrupt.Timer)
			}
		}

		// Apply falling-edge increment after potential reload so edge on reload cycle increments reloaded value
		if falling {
			b.incrementTIMA()
		}
		// Tick PPU via module
		if b.ppu != nil {
			b.ppu.Tick(1)
		}

		// Step OAM DMA (1 byte per cycle) if active
		if b.dmaActive {
			if b.dmaIndex < 0xA0 {
				v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
				b.ppu.OAMDMAWrite(int(b.dmaIndex), v)
				b.dmaIndex++
			}
			if b.dmaIndex >= 0xA0 {
				b.dmaActive = false
			}
		}
	}
}

// timerInput computes the current timer clock input (after TAC gating),
// via the same pure falling-edge check internal/timer.Timer uses.
func (b *Bus) timerInput() bool { return timer.Input(b.tac, b.divInternal) }

// incrementTIMA applies one falling-edge increment via internal/timer's
// shared StepTIMA, honoring/arming the pending-reload delay exactly as
// Timer.Tick does.
func (b *Bus) incrementTIMA() {
	b.tima, b.timaReloadDelay = timer.StepTIMA(b.tima, b.timaReloadDelay)
}

// updateJoypadIRQ recomputes JOYP lower 4 bits (active-low), via the same
// joypad.PressedMask group-selection logic internal/joypad.Joypad uses, and
// raises IF bit 4 on any 1->0 transition.
func (b *Bus) updateJoypadIRQ() {
	newLower := 0x0F &^ joypad.PressedMask(b.joypSelect, b.joypad)
	// Edge: previously 1, now 0 -> trigger IF bit 4
	falling := b.joypLower4 &^ newLower
	if falling != 0 {
		b.ints.Request(interrupt.Joypad)
	}
	b.joypLower4 = newLower
}

