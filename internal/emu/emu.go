package emu

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
)

// Buttons is the joypad state for a single frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine wires a cartridge, CPU, and bus/PPU into a runnable Game Boy.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath   string
	savPath   string
	rtcPath   string
	buttons   Buttons
	cyclesRun int
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadCartridge boots a machine directly from ROM bytes (and an optional
// DMG or CGB boot ROM), without any on-disk save state.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	m.bus = bus.New(rom)
	m.cpu = cpu.New(m.bus)

	cgb := h.CGBFlag == 0x80 || h.CGBFlag == 0xC0
	m.bus.SetCGB(cgb)
	if set, ok := autoCompatPaletteFromHeader(h); ok {
		m.bus.SetCompatPalette(cgbCompatSets[set%len(cgbCompatSets)])
	}

	if len(boot) >= 0x100 {
		m.cpu.SetPC(0x0000)
		m.bus.SetBootROM(boot)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
	}
	return nil
}

// LoadROMFromFile reads a .gb/.gbc ROM from disk, wires up the machine, and
// loads a sibling .sav/.rtc if present next to the ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	return m.LoadROMFromFileWithBoot(path, "")
}

// LoadROMFromFileWithBoot is LoadROMFromFile plus an optional boot ROM path;
// an empty bootPath behaves exactly like LoadROMFromFile.
func (m *Machine) LoadROMFromFileWithBoot(path, bootPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if bootPath != "" {
		boot, err = os.ReadFile(bootPath)
		if err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
	}
	if err := m.LoadCartridge(data, boot); err != nil {
		return err
	}
	m.romPath = path
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	m.savPath = base + ".sav"
	m.rtcPath = base + ".rtc"
	m.loadPersistence()
	return nil
}

func (m *Machine) loadPersistence() {
	c := m.bus.Cart()
	if bb, ok := c.(cart.BatteryBacked); ok {
		if data, err := os.ReadFile(m.savPath); err == nil {
			bb.LoadRAM(data)
		}
	}
	if rb, ok := c.(cart.RTCBacked); ok {
		if data, err := os.ReadFile(m.rtcPath); err == nil {
			rb.LoadRTC(data)
		}
	}
}

// SavePersistence writes the cartridge's battery RAM and RTC (if any) back
// to the .sav/.rtc files beside the loaded ROM.
func (m *Machine) SavePersistence() error {
	if m.bus == nil {
		return nil
	}
	c := m.bus.Cart()
	if bb, ok := c.(cart.BatteryBacked); ok {
		if data := bb.SaveRAM(); data != nil {
			if err := os.WriteFile(m.savPath, data, 0o644); err != nil {
				return fmt.Errorf("%w: %v", ErrSavePersistFailed, err)
			}
		}
	}
	if rb, ok := c.(cart.RTCBacked); ok {
		if data := rb.SaveRTC(); data != nil {
			if err := os.WriteFile(m.rtcPath, data, 0o644); err != nil {
				return fmt.Errorf("%w: %v", ErrSavePersistFailed, err)
			}
		}
	}
	return nil
}

// SetSerialWriter attaches a sink for bytes written out the serial port
// (used by test ROMs to report pass/fail, and by link-cable tooling).
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetButtons replaces the whole held-button state.
func (m *Machine) SetButtons(b Buttons) {
	m.buttons = b
	m.bus.SetJoypadState(b.mask())
}

// StepFrame runs CPU/PPU/timers until one PPU frame (vblank) completes,
// rendering into the PPU's framebuffer.
func (m *Machine) StepFrame() { m.runUntilVBlank() }

// StepFrameNoRender is identical to StepFrame: rendering happens inside the
// PPU's per-scanline Tick regardless, so there is no cheaper path to skip
// it. The name matches headless test-ROM runners that don't blit a window.
func (m *Machine) StepFrameNoRender() { m.runUntilVBlank() }

func (m *Machine) runUntilVBlank() {
	if m.cpu == nil {
		return
	}
	for {
		cycles := m.cpu.Step()
		if err := m.cpu.Err(); err != nil && m.cfg.Trace {
			log.Printf("cpu: %v", err)
		}
		m.cyclesRun += cycles
		if m.bus.PPU().ConsumeVBlank() {
			return
		}
	}
}

// Framebuffer returns the most recently rendered 160x144 RGB frame.
func (m *Machine) Framebuffer() *[144][160][3]byte { return m.bus.PPU().Framebuffer() }

// Bus exposes the underlying bus for tools that need raw memory access
// (debuggers, the cpurunner CLI).
func (m *Machine) Bus() *bus.Bus { return m.bus }

// CPU exposes the underlying CPU for tools that need register access.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// cgbCompatSetNames/cgbCompatSets translate autoCompatPaletteFromHeader's
// title-table IDs (0-4, see compat_tables.go) into ppu palette constants.
var cgbCompatSetNames = []string{"green", "sepia", "blue", "red", "pastel"}

var cgbCompatSets = []int{
	ppu.PaletteGreen,
	ppu.PaletteSepia,
	ppu.PaletteBlue,
	ppu.PaletteRed,
	ppu.PalettePastel,
}

// CompatPaletteByName resolves a palette name (as in cgbCompatSetNames, plus
// "greyscale") to the ppu constant, for CLI flags.
func CompatPaletteByName(name string) (int, bool) {
	if name == "greyscale" {
		return ppu.PaletteGreyscale, true
	}
	for i, n := range cgbCompatSetNames {
		if n == name {
			return cgbCompatSets[i], true
		}
	}
	return 0, false
}
