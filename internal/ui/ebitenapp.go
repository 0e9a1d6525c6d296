package ui

import (
	"image/color"
	"log"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
)

// App is a minimal ebiten host: it steps one emulated frame per Update,
// blits the PPU's framebuffer, and maps the keyboard to the joypad.
type App struct {
	cfg    Config
	m      *emu.Machine
	tex    *ebiten.Image
	paused bool
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	if set, ok := emu.CompatPaletteByName(cfg.Palette); ok {
		m.Bus().SetCompatPalette(set)
	}
	return &App{cfg: cfg, m: m, tex: ebiten.NewImage(160, 144)}
}

func (a *App) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if a.paused {
		return nil
	}
	a.m.SetButtons(a.readButtons())
	a.m.StepFrame()
	return nil
}

func (a *App) readButtons() emu.Buttons {
	return emu.Buttons{
		A:      ebiten.IsKeyPressed(ebiten.KeyX),
		B:      ebiten.IsKeyPressed(ebiten.KeyZ),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShift),
		Up:     ebiten.IsKeyPressed(ebiten.KeyUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyDown),
		Left:   ebiten.IsKeyPressed(ebiten.KeyLeft),
		Right:  ebiten.IsKeyPressed(ebiten.KeyRight),
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	fb := a.m.Framebuffer()
	pix := make([]byte, 160*144*4)
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			c := fb[y][x]
			i := (y*160 + x) * 4
			pix[i+0], pix[i+1], pix[i+2], pix[i+3] = c[0], c[1], c[2], 0xFF
		}
	}
	a.tex.WritePixels(pix)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.Fill(color.Black)
	screen.DrawImage(a.tex, op)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160 * a.cfg.Scale, 144 * a.cfg.Scale
}

// Run starts the ebiten main loop; blocks until the window closes.
func Run(cfg Config, m *emu.Machine) error {
	a := NewApp(cfg, m)
	if err := ebiten.RunGame(a); err != nil {
		log.Printf("ui: %v", err)
		return err
	}
	return nil
}
