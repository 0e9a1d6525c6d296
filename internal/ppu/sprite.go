package ppu

// Sprite is a single OAM entry already resolved to screen-space coordinates:
// X and Y have the standard -8/-16 OAM offsets subtracted out, so a sprite
// drawn at the top-left of the screen has X==0, Y==0. Height is 8 or 16;
// the zero value means 8, so callers built by hand (tests, simple fixtures)
// don't need to set it.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
	Height   int
}

func (s Sprite) height() int {
	if s.Height == 0 {
		return 8
	}
	return s.Height
}

const (
	spriteAttrPriority = 1 << 7
	spriteAttrYFlip    = 1 << 6
	spriteAttrXFlip    = 1 << 5
	spriteAttrBank     = 1 << 3 // CGB: which VRAM bank the tile data lives in
	spriteAttrDMGPal   = 1 << 4 // DMG: 0 -> OBP0, 1 -> OBP1
)

// ScanOAM collects up to ten sprites intersecting scanline ly, in OAM order
// (lowest index first), the order ComposeSpriteLine expects for tie-breaking.
func ScanOAM(oam []byte, ly int, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		y := int(oam[base]) - 16
		if ly < y || ly >= y+height {
			continue
		}
		x := int(oam[base+1]) - 8
		tile := oam[base+2]
		if tall {
			tile &^= 0x01
		}
		out = append(out, Sprite{
			X:        x,
			Y:        y,
			Tile:     tile,
			Attr:     oam[base+3],
			OAMIndex: i,
			Height:   height,
		})
	}
	return out
}

// ComposeSpriteLine renders up to ten sprites onto a 160-pixel scanline.
// sprites must already be in priority order (lowest OAM index first); this
// function renders them back to front so the first entry ends up on top,
// matching the hardware's OAM-order priority rule. bgci holds the
// background's color index per column, used for the BG-priority check.
// cgbMode selects which VRAM bank a sprite's tile data is read from.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgbMode bool) [160]byte {
	ci, _ := composeSpriteLine(mem, sprites, ly, bgci, cgbMode)
	return ci
}

// composeSpriteLineWithAttrs additionally reports, per pixel, the Attr byte
// of whichever sprite won that pixel (0 if none), so the full renderer can
// resolve DMG OBP0/OBP1 or CGB OBPD palette selection without re-deriving
// the composited result a second time.
func composeSpriteLineWithAttrs(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgbMode bool) ([160]byte, [160]byte) {
	return composeSpriteLine(mem, sprites, ly, bgci, cgbMode)
}

// Sprites are composited back to front: the slice is walked in reverse so
// that sprites[0] (the lowest OAM index) is painted last and so wins any
// overlap, matching the hardware's OAM-order priority rule.
func composeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgbMode bool) (out [160]byte, attrOut [160]byte) {
	for i := len(sprites) - 1; i >= 0; i-- {
		s := sprites[i]
		height := s.height()
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&spriteAttrYFlip != 0 {
			row = height - 1 - row
		}
		tileNum := uint16(s.Tile)
		if height == 16 {
			tileNum &^= 0x01
			if row >= 8 {
				tileNum |= 0x01
				row -= 8
			}
		}
		base := 0x8000 + tileNum*16 + uint16(row)*2
		var lo, hi byte
		if bm, ok := mem.(bankedFullReader); ok && cgbMode {
			bank := 0
			if s.Attr&spriteAttrBank != 0 {
				bank = 1
			}
			lo = bm.ReadBank(bank, base)
			hi = bm.ReadBank(bank, base+1)
		} else {
			lo = mem.Read(base)
			hi = mem.Read(base + 1)
		}
		for col := 0; col < 8; col++ {
			x := s.X + col
			if x < 0 || x >= 160 {
				continue
			}
			bit := byte(7 - col)
			if s.Attr&spriteAttrXFlip != 0 {
				bit = byte(col)
			}
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			behindBG := s.Attr&spriteAttrPriority != 0
			if behindBG && bgci[x] != 0 {
				continue
			}
			out[x] = ci
			attrOut[x] = s.Attr
		}
	}
	return out, attrOut
}

