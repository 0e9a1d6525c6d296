package cart

// MBC2 supports up to 256KB ROM and has a built-in 512x4-bit RAM (each byte
// stores a nibble in its low 4 bits; the high nibble always reads as 1s).
// A write to 0x0000-0x1FFF with address bit 8 clear sets RAM-enable; a write
// to 0x2000-0x3FFF with bit 8 set selects the ROM bank; other writes to
// 0x0000-0x3FFF are ignored. Grounded on original_source/src/system/cartridge.rs's
// read_byte_mbc2/write_byte_mbc2, written in the sibling MBC files' idiom.
type MBC2 struct {
	rom []byte
	ram [0x200]byte // 512 nibbles, A000-A1FF

	romBank    byte // 4 bits, 0 remapped to 1
	ramEnabled bool
}

func NewMBC2(rom []byte) *MBC2 {
	m := &MBC2{rom: rom}
	m.romBank = 1
	return m
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank)
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xA1FF:
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[addr-0xA000] & 0x0F)
	case addr >= 0xA200 && addr <= 0xBFFF:
		// Echoes of the 512-nibble RAM repeat through the rest of the window.
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[(addr-0xA000)%0x200] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		if addr&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
		}
	case addr < 0x4000:
		if addr&0x0100 != 0 {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xA1FF:
		if m.ramEnabled {
			m.ram[addr-0xA000] = value & 0x0F
		}
	case addr >= 0xA200 && addr <= 0xBFFF:
		if m.ramEnabled {
			m.ram[(addr-0xA000)%0x200] = value & 0x0F
		}
	}
}

// BatteryBacked: the built-in RAM persists across sessions on battery carts.
func (m *MBC2) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	copy(m.ram[:], data)
}
