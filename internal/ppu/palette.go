package ppu

// cgbPaletteRAM models the 64-byte BGPD/OBPD memories: 8 palettes of 4
// colors, each color two bytes holding a 5-5-5 RGB value. BGPI/OBPI hold a
// 6-bit index plus an auto-increment flag (bit 7).
type cgbPaletteRAM struct {
	bytes   [64]byte
	index   byte
	autoInc bool
}

func (p *cgbPaletteRAM) writeIndex(v byte) {
	p.index = v & 0x3F
	p.autoInc = v&0x80 != 0
}

func (p *cgbPaletteRAM) readIndexReg() byte {
	v := p.index
	if p.autoInc {
		v |= 0x80
	}
	return v
}

func (p *cgbPaletteRAM) readData() byte {
	return p.bytes[p.index]
}

func (p *cgbPaletteRAM) writeData(v byte) {
	p.bytes[p.index] = v
	if p.autoInc {
		p.index = (p.index + 1) & 0x3F
	}
}

// color returns the (r,g,b) triple, each 0-255, for palette pal (0-7) and
// color index ci (0-3), expanding the stored 5-bit-per-channel value.
func (p *cgbPaletteRAM) color(pal, ci byte) (r, g, b byte) {
	off := int(pal)*8 + int(ci)*2
	lo, hi := p.bytes[off], p.bytes[off+1]
	v := uint16(lo) | uint16(hi)<<8
	r5 := byte(v & 0x1F)
	g5 := byte((v >> 5) & 0x1F)
	b5 := byte((v >> 10) & 0x1F)
	return expand5to8(r5), expand5to8(g5), expand5to8(b5)
}

func expand5to8(v byte) byte {
	return (v << 3) | (v >> 2)
}

// DMG compatibility palettes: four shades applied uniformly in place of the
// real per-pixel CGB color lookup, mirroring the CGB boot menu's built-in
// palette choices. Index order matches BGP/OBPx 2-bit codes.
const (
	PaletteGreyscale = iota
	PaletteGreen
	PaletteSepia
	PaletteBlue
	PaletteRed
	PalettePastel
)

var dmgShadeSets = [...][4][3]byte{
	PaletteGreyscale: {{255, 255, 255}, {192, 192, 192}, {96, 96, 96}, {0, 0, 0}},
	PaletteGreen:     {{0x9B, 0xBC, 0x0F}, {0x8B, 0xAC, 0x0F}, {0x30, 0x62, 0x30}, {0x0F, 0x38, 0x0F}},
	PaletteSepia:     {{0xF7, 0xE7, 0xC6}, {0xC6, 0x9A, 0x63}, {0x8C, 0x5A, 0x34}, {0x3A, 0x24, 0x14}},
	PaletteBlue:      {{0xC6, 0xDE, 0xF7}, {0x7B, 0xA8, 0xE0}, {0x3A, 0x5C, 0x9E}, {0x0F, 0x1E, 0x3A}},
	PaletteRed:       {{0xFF, 0x8C, 0x8C}, {0xCC, 0x50, 0x50}, {0x8C, 0x20, 0x20}, {0x30, 0x00, 0x00}},
	PalettePastel:    {{0xFF, 0xF0, 0xE6}, {0xF2, 0xC9, 0xD4}, {0xB7, 0x9A, 0xC9}, {0x5B, 0x4A, 0x6E}},
}

// dmgColor resolves a 2-bit BGP/OBPx-mapped shade (0-3, already run through
// the register's shade table) to RGB using the selected compatibility set.
func dmgColor(set int, shade byte) (r, g, b byte) {
	c := dmgShadeSets[set][shade&0x03]
	return c[0], c[1], c[2]
}

// shadeFromRegister applies a BGP/OBP0/OBP1-style register to a 2-bit color
// index, returning the 2-bit shade it maps to.
func shadeFromRegister(reg byte, ci byte) byte {
	return (reg >> (ci * 2)) & 0x03
}
