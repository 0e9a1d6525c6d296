package ui

// Config contains window/input related settings for the windowed host.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	Palette string // compat palette name, see emu.CompatPaletteByName
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
