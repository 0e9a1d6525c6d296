package ppu

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs is a snapshot of the registers that affect rendering, captured
// when a scanline enters mode 3 (pixel transfer). Keeping a snapshot per
// line lets the renderer reproduce mid-frame raster effects (a game
// changing SCX/WX/palettes between scanlines) instead of reading live
// registers that may have moved on by the time the frame is drawn.
type LineRegs struct {
	LCDC, SCX, SCY, WX, WY, BGP, OBP0, OBP1 byte
	WinLine                                 byte
	WinVisible                              bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, CGB palette RAM, HDMA/GDMA,
// and per-scanline rendering into an RGB framebuffer.
type PPU struct {
	cgb bool

	vram     [2][0x2000]byte // bank 0 and bank 1 (CGB only), 0x8000-0x9FFF
	vramBank byte            // FF4F bit0
	oam      [0xA0]byte      // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	bgPalRAM  cgbPaletteRAM // FF68/FF69
	objPalRAM cgbPaletteRAM // FF6A/FF6B

	hdma      hdmaState
	doubleSpd bool
	compatSet int // DMG-compat shade set (PaletteGreyscale etc.)
	busRead   func(addr uint16) byte

	dot         int
	winLine     int // internal window line counter, -1 = not yet activated this frame
	lineRegs    [154]LineRegs
	framebuffer [144][160][3]byte
	vblank      bool

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	p := &PPU{req: req}
	p.winLine = -1
	p.clearFramebuffer()
	return p
}

// SetCGB switches the PPU between DMG and CGB rendering semantics. Call
// once after construction, before the first frame, based on the cartridge
// header's CGB flag.
func (p *PPU) SetCGB(cgb bool) { p.cgb = cgb }

func (p *PPU) IsCGB() bool { return p.cgb }

// SetDoubleSpeed records CGB double-speed mode; HDMA still copies one block
// per HBlank entry, so its timing does not change.
func (p *PPU) SetDoubleSpeed(on bool) { p.doubleSpd = on }

// SetCompatPalette selects the shade set used to render DMG games (ignored
// in native CGB mode, where BGPD/OBPD drive color directly).
func (p *PPU) SetCompatPalette(set int) { p.compatSet = set }

// SetBusReader wires the full CPU address space in for HDMA's source reads,
// which can pull from ROM or WRAM, not just VRAM.
func (p *PPU) SetBusReader(f func(addr uint16) byte) { p.busRead = f }

func (p *PPU) hdmaSourceRead(addr uint16) byte {
	if p.busRead == nil {
		return 0xFF
	}
	return p.busRead(addr)
}

func (p *PPU) Framebuffer() *[144][160][3]byte { return &p.framebuffer }

// ConsumeVBlank reports and clears whether a VBlank has begun (or the LCD was
// turned off) since the last call, letting the host poll once per its own frame loop.
func (p *PPU) ConsumeVBlank() bool {
	v := p.vblank
	p.vblank = false
	return v
}

func (p *PPU) LineRegs(y int) LineRegs {
	if y < 0 || y >= len(p.lineRegs) {
		return LineRegs{}
	}
	return p.lineRegs[y]
}

// Read implements VRAMReader against bank 0, for DMG-path renderer helpers.
func (p *PPU) Read(addr uint16) byte { return p.ReadBank(0, addr) }

// ReadBank reads VRAM from an explicit bank, ignoring the mode-3 lockout;
// used by the renderer (which runs outside of CPU bus timing) and tests.
func (p *PPU) ReadBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	if bank != 0 && bank != 1 {
		bank = 0
	}
	return p.vram[bank][addr-0x8000]
}

func (p *PPU) writeBank(bank int, addr uint16, v byte) {
	if addr < 0x8000 || addr > 0x9FFF {
		return
	}
	if bank != 0 && bank != 1 {
		bank = 0
	}
	p.vram[bank][addr-0x8000] = v
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[p.vramBank][addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF4F:
		return 0xFE | p.vramBank
	case addr == 0xFF68:
		return p.bgPalRAM.readIndexReg()
	case addr == 0xFF69:
		return p.bgPalRAM.readData()
	case addr == 0xFF6A:
		return p.objPalRAM.readIndexReg()
	case addr == 0xFF6B:
		return p.objPalRAM.readData()
	case addr >= 0xFF51 && addr <= 0xFF55:
		return p.hdma.read(addr)
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[p.vramBank][addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.setMode(0)
			p.updateLYC()
			p.clearFramebuffer()
			p.vblank = true
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLine = -1
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	case addr == 0xFF4F:
		if p.cgb {
			p.vramBank = value & 0x01
		}
	case addr == 0xFF68:
		p.bgPalRAM.writeIndex(value)
	case addr == 0xFF69:
		p.bgPalRAM.writeData(value)
	case addr == 0xFF6A:
		p.objPalRAM.writeIndex(value)
	case addr == 0xFF6B:
		p.objPalRAM.writeData(value)
	case addr >= 0xFF51 && addr <= 0xFF55:
		p.hdma.write(p, addr, value)
	}
}

// OAMDMAWrite is used by the bus's OAM DMA routine to place a copied byte.
func (p *PPU) OAMDMAWrite(i int, v byte) {
	if i >= 0 && i < len(p.oam) {
		p.oam[i] = v
	}
}

func (p *PPU) clearFramebuffer() {
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			p.framebuffer[y][x] = [3]byte{255, 255, 255}
		}
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		prevMode := p.stat & 0x03
		if mode == 3 && prevMode != 3 && p.ly < 144 {
			p.captureLineRegs()
		}
		p.setMode(mode)
		if mode == 0 && prevMode != 0 && p.ly < 144 {
			p.renderScanline(p.ly)
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				p.vblank = true
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLine = -1
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}

		p.hdma.tick(p, p.doubleSpd)
	}
}

// captureLineRegs snapshots raster-affecting registers on entry to mode 3
// for the current line, and advances the window's internal line counter.
func (p *PPU) captureLineRegs() {
	ly := p.ly
	winVisible := (p.lcdc&0x20) != 0 && p.wy <= ly && int(p.wx)-7 < 160
	if winVisible {
		p.winLine++
	}
	wl := byte(0)
	if p.winLine >= 0 {
		wl = byte(p.winLine)
	}
	p.lineRegs[ly] = LineRegs{
		LCDC: p.lcdc, SCX: p.scx, SCY: p.scy, WX: p.wx, WY: p.wy,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WinLine: wl, WinVisible: winVisible,
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0:
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2:
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// renderScanline composes BG, window, and sprite layers for line ly using
// the register snapshot captured at that line's mode-3 entry, and writes
// the resolved RGB pixels into the framebuffer.
func (p *PPU) renderScanline(ly byte) {
	lr := p.lineRegs[ly]

	bgMapBase := uint16(0x9800)
	if lr.LCDC&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	tileData8000 := lr.LCDC&0x10 != 0

	var bgCI, bgPal [160]byte
	var bgPri [160]bool
	if p.cgb {
		bgCI, bgPal, bgPri = RenderBGScanlineCGB(p, bgMapBase, bgMapBase, tileData8000, lr.SCX, lr.SCY, ly)
	} else {
		bgCI = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, lr.SCX, lr.SCY, ly)
	}
	bgEnabled := p.cgb || lr.LCDC&0x01 != 0
	if !bgEnabled {
		bgCI = [160]byte{}
	}

	if lr.WinVisible {
		winMapBase := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			winMapBase = 0x9C00
		}
		wxStart := int(lr.WX) - 7
		if p.cgb {
			wCI, wPal, wPri := RenderWindowScanlineCGB(p, winMapBase, winMapBase, tileData8000, wxStart, lr.WinLine)
			for x := max0(wxStart); x < 160; x++ {
				bgCI[x], bgPal[x], bgPri[x] = wCI[x], wPal[x], wPri[x]
			}
		} else {
			wCI := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, lr.WinLine)
			for x := max0(wxStart); x < 160; x++ {
				bgCI[x] = wCI[x]
			}
		}
	}

	spritesEnabled := lr.LCDC&0x02 != 0
	var spriteCI, spriteAttr [160]byte
	if spritesEnabled {
		sprites := ScanOAM(p.oam[:], int(ly), lr.LCDC&0x04 != 0)
		spriteCI, spriteAttr = composeSpriteLineWithAttrs(p, sprites, ly, bgCI, p.cgb)
		if p.cgb {
			for x := 0; x < 160; x++ {
				if spriteCI[x] != 0 && bgPri[x] && bgCI[x] != 0 {
					spriteCI[x] = 0
				}
			}
		}
	}

	row := &p.framebuffer[ly]
	for x := 0; x < 160; x++ {
		var r, g, b byte
		if spriteCI[x] != 0 {
			attr := spriteAttr[x]
			if p.cgb {
				r, g, b = p.objPalRAM.color(attr&0x07, spriteCI[x])
			} else {
				obp := lr.OBP0
				if attr&spriteAttrDMGPal != 0 {
					obp = lr.OBP1
				}
				r, g, b = dmgColor(p.compatSet, shadeFromRegister(obp, spriteCI[x]))
			}
		} else if bgCI[x] != 0 || p.cgb {
			if p.cgb {
				r, g, b = p.bgPalRAM.color(bgPal[x], bgCI[x])
			} else {
				r, g, b = dmgColor(p.compatSet, shadeFromRegister(lr.BGP, bgCI[x]))
			}
		} else {
			r, g, b = dmgColor(p.compatSet, shadeFromRegister(lr.BGP, 0))
		}
		row[x] = [3]byte{r, g, b}
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
