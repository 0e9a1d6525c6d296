package emu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameHashDeterministic(t *testing.T) {
	var fb [144][160][3]byte
	fb[10][20] = [3]byte{0x9B, 0xBC, 0x0F}
	fb[143][159] = [3]byte{1, 2, 3}

	h1 := FrameHash(&fb)
	h2 := FrameHash(&fb)
	require.Equal(t, h1, h2, "hashing the same framebuffer twice must be deterministic")

	fb[0][0] = [3]byte{1, 1, 1}
	h3 := FrameHash(&fb)
	require.NotEqual(t, h1, h3, "changing a pixel must change the hash")
}

func TestCompatPaletteByName(t *testing.T) {
	for _, name := range []string{"green", "sepia", "blue", "red", "pastel"} {
		_, ok := CompatPaletteByName(name)
		require.True(t, ok, "expected palette %q to resolve", name)
	}
	_, ok := CompatPaletteByName("not-a-real-palette")
	require.False(t, ok)
}
