package main

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ui"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "gbemu",
		Usage: "a cycle-approximate Game Boy / Game Boy Color emulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rom", Usage: "path to a .gb/.gbc ROM"},
			&cli.StringFlag{Name: "bootrom", Usage: "optional boot ROM"},
			&cli.IntFlag{Name: "scale", Value: 3, Usage: "window scale"},
			&cli.StringFlag{Name: "title", Value: "gbemu", Usage: "window title"},
			&cli.StringFlag{Name: "palette", Value: "greyscale", Usage: "DMG compat palette: greyscale, green, sepia, blue, red, pastel"},
			&cli.BoolFlag{Name: "trace", Usage: "log unimplemented-opcode CPU traces"},
			&cli.BoolFlag{Name: "headless", Usage: "run without a window"},
			&cli.IntFlag{Name: "frames", Value: 300, Usage: "frames to run in headless mode"},
			&cli.StringFlag{Name: "outpng", Usage: "write the last framebuffer to a PNG"},
			&cli.StringFlag{Name: "expect", Usage: "assert the framebuffer's xxhash (hex) matches"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		return fmt.Errorf("missing --rom")
	}
	if len(romPath) >= 4 {
		if h, err := cart.ParseHeader(mustRead(romPath)); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	m := emu.New(emu.Config{Trace: c.Bool("trace")})
	if err := m.LoadROMFromFileWithBoot(romPath, c.String("bootrom")); err != nil {
		return fmt.Errorf("load rom: %w", err)
	}
	defer m.SavePersistence()

	if c.Bool("headless") {
		return runHeadless(m, c.Int("frames"), c.String("outpng"), c.String("expect"))
	}

	uiCfg := ui.Config{Title: c.String("title"), Scale: c.Int("scale"), Palette: c.String("palette")}
	return ui.Run(uiCfg, m)
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectHash string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrameNoRender()
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	h := emu.FrameHash(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_hash=%016x", frames, dur.Truncate(time.Millisecond), fps, h)

	if pngPath != "" {
		if err := saveFramePNG(fb, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectHash != "" {
		got := fmt.Sprintf("%016x", h)
		if got != expectHash {
			return fmt.Errorf("framebuffer hash mismatch: got %s, want %s", got, expectHash)
		}
	}
	return nil
}

func saveFramePNG(fb *[144][160][3]byte, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 160, 144))
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			c := fb[y][x]
			i := img.PixOffset(x, y)
			img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c[0], c[1], c[2], 0xFF
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}
