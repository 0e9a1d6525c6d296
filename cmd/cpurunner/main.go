package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/urfave/cli/v2"
)

// writerFunc adapts a function to io.Writer
type writerFunc func(p []byte) (n int, err error)

func (f writerFunc) Write(p []byte) (n int, err error) { return f(p) }

func main() {
	app := &cli.App{
		Name:  "cpurunner",
		Usage: "headless CPU-only ROM runner, used against the blargg test-ROM suite",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rom", Required: true, Usage: "path to ROM (.gb)"},
			&cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM to run from 0x0000 until FF50 disables it"},
			&cli.IntFlag{Name: "steps", Value: 5_000_000, Usage: "max CPU steps to run"},
			&cli.IntFlag{Name: "pc", Value: 0x0100, Usage: "initial PC value"},
			&cli.BoolFlag{Name: "trace", Usage: "print PC/opcodes"},
			&cli.StringFlag{Name: "until", Value: "Passed", Usage: "stop when serial output contains this substring (case-insensitive); empty to disable"},
			&cli.BoolFlag{Name: "auto", Usage: "auto-detect 'Passed' or 'Failed N tests' in serial output and exit with code 0/1"},
			&cli.DurationFlag{Name: "timeout", Usage: "optional wall-clock timeout (e.g. 30s, 2m); 0 disables"},
			&cli.BoolFlag{Name: "traceOnFail", Usage: "when -auto detects failure, print a recent trace window (slows down)"},
			&cli.IntFlag{Name: "traceWindow", Value: 200, Usage: "number of recent instructions to include in 'traceOnFail' dump"},
			&cli.IntFlag{Name: "serialWindow", Value: 8192, Usage: "number of recent serial bytes to retain for diagnostics on fail"},
			&cli.StringFlag{Name: "hash", Usage: "assert the final framebuffer's xxhash (hex) matches (requires a PPU-driving bus)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	romPath := ctx.String("rom")
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if bp := ctx.String("bootrom"); bp != "" {
		boot, err = os.ReadFile(bp)
		if err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
	}

	b := bus.New(rom)
	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
	}

	serialWindow := ctx.Int("serialWindow")
	if serialWindow < 256 {
		serialWindow = 256
	}
	serRing := make([]byte, serialWindow)
	serRingIdx, serRingFill := 0, 0
	var ser bytes.Buffer
	until, auto := ctx.String("until"), ctx.Bool("auto")
	w := io.Writer(os.Stdout)
	if until != "" || auto {
		w = io.MultiWriter(os.Stdout, &ser, writerFunc(func(p []byte) (int, error) {
			for _, ch := range p {
				serRing[serRingIdx] = ch
				serRingIdx = (serRingIdx + 1) % serialWindow
				if serRingFill < serialWindow {
					serRingFill++
				}
			}
			return len(p), nil
		}))
	}
	b.SetSerialWriter(w)

	c := cpu.New(b)
	if len(boot) >= 0x100 {
		c.SP = 0xFFFE
		c.PC = 0x0000
		b.Interrupts().DI()
	} else {
		c.ResetNoBoot()
		c.SetPC(uint16(ctx.Int("pc")))
		b.Write(0xFF00, 0xCF)
		b.Write(0xFF05, 0x00) // TIMA
		b.Write(0xFF06, 0x00) // TMA
		b.Write(0xFF07, 0x00) // TAC
		b.Write(0xFF40, 0x91) // LCDC on with BG, tile data at 0x8000, sprites off
		b.Write(0xFF42, 0x00) // SCY
		b.Write(0xFF43, 0x00) // SCX
		b.Write(0xFF45, 0x00) // LYC
		b.Write(0xFF47, 0xFC) // BGP
		b.Write(0xFF48, 0xFF) // OBP0
		b.Write(0xFF49, 0xFF) // OBP1
		b.Write(0xFF4A, 0x00) // WY
		b.Write(0xFF4B, 0x00) // WX
		b.Write(0xFFFF, 0x00) // IE
	}

	trace, traceOnFail := ctx.Bool("trace"), ctx.Bool("traceOnFail")
	traceWindow := ctx.Int("traceWindow")
	steps := ctx.Int("steps")
	timeout := ctx.Duration("timeout")

	start := time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}
	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	stageRe := regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
	lastStage := ""

	type traceEntry struct {
		pc                     uint16
		op                     byte
		cyc                    int
		a, f, b, c, d, e, h, l byte
		sp                     uint16
		ime                    bool
		ifreg                  byte
		ie                     byte
	}
	ring := make([]traceEntry, traceWindow)
	ringIdx, ringFill := 0, 0
	var cycles int
	for i := 0; i < steps; i++ {
		pc := c.PC
		var op byte
		if trace || traceOnFail {
			op = b.Read(pc)
		}
		cyc := c.Step()
		cycles += cyc
		if trace || traceOnFail {
			te := traceEntry{
				pc: pc, op: op, cyc: cyc,
				a: c.A, f: c.F, b: c.B, c: c.C, d: c.D, e: c.E, h: c.H, l: c.L,
				sp: c.SP, ime: b.Interrupts().IME(), ifreg: b.Read(0xFF0F), ie: b.Read(0xFFFF),
			}
			if trace {
				fmt.Printf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X\n",
					te.pc, te.op, te.cyc, te.a, te.f, te.b, te.c, te.d, te.e, te.h, te.l, te.sp, te.ime, te.ifreg, te.ie)
			}
			if traceOnFail && traceWindow > 0 {
				ring[ringIdx] = te
				ringIdx = (ringIdx + 1) % traceWindow
				if ringFill < traceWindow {
					ringFill++
				}
			}
		}
		if auto {
			s := ser.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			if strings.Contains(strings.ToLower(s), "passed") {
				reportDone(i, cycles, start, lastStage, "PASS", "")
				os.Exit(0)
			}
			if m := failRe.FindStringSubmatch(s); m != nil {
				var traceDump, serialDump string
				if traceOnFail && ringFill > 0 {
					var sb strings.Builder
					startIdx := (ringIdx - ringFill + traceWindow) % traceWindow
					for j := 0; j < ringFill; j++ {
						te := ring[(startIdx+j)%traceWindow]
						fmt.Fprintf(&sb, "PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X\n",
							te.pc, te.op, te.cyc, te.a, te.f, te.b, te.c, te.d, te.e, te.h, te.l, te.sp, te.ime, te.ifreg, te.ie)
					}
					traceDump = sb.String()
				}
				if serRingFill > 0 {
					var sb strings.Builder
					sidx := (serRingIdx - serRingFill + serialWindow) % serialWindow
					for j := 0; j < serRingFill; j++ {
						sb.WriteByte(serRing[(sidx+j)%serialWindow])
					}
					serialDump = sb.String()
				}
				reportDone(i, cycles, start, lastStage, m[0], traceDump)
				if serialDump != "" {
					fmt.Printf("\n--- recent serial (last %d bytes) ---\n%s\n--- end serial ---\n", serRingFill, serialDump)
				}
				os.Exit(1)
			}
		} else if until != "" {
			if strings.Contains(strings.ToLower(ser.String()), strings.ToLower(until)) {
				fmt.Printf("\nDetected '%s' in serial output.\n", until)
				fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				return nil
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	if want := ctx.String("hash"); want != "" {
		got := fmt.Sprintf("%016x", emu.FrameHash(b.PPU().Framebuffer()))
		if got != want {
			return fmt.Errorf("framebuffer hash mismatch: got %s, want %s", got, want)
		}
	}
	dur := time.Since(start)
	fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", steps, cycles, dur.Truncate(time.Millisecond))
	return nil
}

func reportDone(i, cycles int, start time.Time, lastStage, marker, traceDump string) {
	fmt.Printf("\nDetected %s in serial output.\n", marker)
	if lastStage != "" {
		fmt.Printf("Last stage seen: %s\n", lastStage)
	}
	if traceDump != "" {
		fmt.Printf("\n--- recent trace ---\n%s--- end trace ---\n", traceDump)
	}
	fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
}
