package emu

import "github.com/cespare/xxhash/v2"

// FrameHash hashes a rendered frame for regression/reference comparisons
// (cmd/gbemu's -expect flag and cmd/cpurunner's -hash flag).
func FrameHash(fb *[144][160][3]byte) uint64 {
	buf := make([]byte, 144*160*3)
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			c := fb[y][x]
			off := (y*160 + x) * 3
			buf[off], buf[off+1], buf[off+2] = c[0], c[1], c[2]
		}
	}
	return xxhash.Sum64(buf)
}
