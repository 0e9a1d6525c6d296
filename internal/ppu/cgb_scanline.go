package ppu

// CGB background-map attribute bits (VRAM bank 1, same map layout as bank 0).
// Note: bit 4 selects the tile's VRAM bank in this implementation rather
// than the usual bit 3, matching the attribute layout this core settled on.
const (
	bgAttrPriority = 1 << 7
	bgAttrYFlip    = 1 << 6
	bgAttrXFlip    = 1 << 5
	bgAttrBank     = 1 << 4
	bgAttrPalMask  = 0x07
)

// RenderBGScanlineCGB renders 160 BG pixels plus their per-pixel CGB palette
// number and BG-to-OAM priority bit, reading tile data from the bank an
// attribute byte selects. mapBase/attrBase are usually the same tilemap
// address (0x9800 or 0x9C00): the tile index comes from bank 0, the
// attribute byte from the identical offset in bank 1.
func RenderBGScanlineCGB(mem bankedFullReader, mapBase, attrBase uint16, tileData8000 bool, scx, scy, ly byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	for x := 0; x < 160; x++ {
		bgX := (uint16(scx) + uint16(x)) & 0xFF
		tileX := (bgX >> 3) & 31
		mapOff := mapY*32 + tileX

		tileNum := mem.ReadBank(0, mapBase+mapOff)
		attr := mem.ReadBank(1, attrBase+mapOff)

		row := fineY
		if attr&bgAttrYFlip != 0 {
			row = 7 - row
		}
		bank := 0
		if attr&bgAttrBank != 0 {
			bank = 1
		}

		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(row)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(row)*2
		}
		lo := mem.ReadBank(bank, base)
		hi := mem.ReadBank(bank, base+1)

		col := byte(bgX & 7)
		bit := 7 - col
		if attr&bgAttrXFlip != 0 {
			bit = col
		}
		ci[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		pal[x] = attr & bgAttrPalMask
		pri[x] = attr&bgAttrPriority != 0
	}
	return
}

// RenderWindowScanlineCGB is RenderBGScanlineCGB's window-layer counterpart:
// wxStart is the screen column the window begins at (WX-7), winLine is the
// window's own internal line counter (not LY). Columns left of wxStart are
// zero so callers can blend against the BG layer already drawn there.
func RenderWindowScanlineCGB(mem bankedFullReader, mapBase, attrBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	if wxStart >= 160 {
		return
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7

	for x := wxStart; x < 160; x++ {
		winX := uint16(x - wxStart)
		tileX := (winX >> 3) & 31
		mapOff := mapY*32 + tileX

		tileNum := mem.ReadBank(0, mapBase+mapOff)
		attr := mem.ReadBank(1, attrBase+mapOff)

		row := fineY
		if attr&bgAttrYFlip != 0 {
			row = 7 - row
		}
		bank := 0
		if attr&bgAttrBank != 0 {
			bank = 1
		}

		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(row)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(row)*2
		}
		lo := mem.ReadBank(bank, base)
		hi := mem.ReadBank(bank, base+1)

		col := byte(winX & 7)
		bit := 7 - col
		if attr&bgAttrXFlip != 0 {
			bit = col
		}
		ci[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		pal[x] = attr & bgAttrPalMask
		pri[x] = attr&bgAttrPriority != 0
	}
	return
}

// bankedFullReader is satisfied by anything exposing per-bank VRAM reads;
// the live PPU and the cgb_scanline_test.go fakeVRAM both implement it.
type bankedFullReader interface {
	ReadBank(bank int, addr uint16) byte
}
