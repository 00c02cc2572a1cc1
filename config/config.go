// Package config handles decompiler session configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/colorfulnotion/zdecomp/zerrors"
	"github.com/colorfulnotion/zdecomp/zvm/program"
)

// DefaultMaxBlockInstructions bounds the number of instructions decoded for
// a single block.
const DefaultMaxBlockInstructions = 4096

// Config describes one decompiler session.
type Config struct {
	// ImageLength is the size of the zeroed image allocated for the session.
	ImageLength uint32 `toml:"image-length"`
	Version     uint8  `toml:"version"`
	// Globals is the address of the global variables table.
	Globals uint16 `toml:"globals"`
	// StaticMemory is the base of static memory. Fragments below it are
	// decompiled from writable memory and are reported. Zero disables the check.
	StaticMemory uint16 `toml:"static-memory"`
	// UnsafeIO marks every function as unsafe for the function layer. It has
	// no effect on decoding or code generation.
	UnsafeIO bool `toml:"unsafe-io"`

	MaxBlockInstructions int `toml:"max-block-instructions"`

	// CacheDir holds a LevelDB fragment cache. Empty disables it.
	CacheDir string `toml:"cache-dir"`
	LogLevel string `toml:"log-level"`
	Debug    string `toml:"debug"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Version:              5,
		MaxBlockInstructions: DefaultMaxBlockInstructions,
		LogLevel:             "info",
	}
}

// Load reads a TOML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyHeader takes the version, globals and static memory base from a story
// header and sizes the image to hold the story.
func (c *Config) ApplyHeader(h *program.Header, storyLength int) {
	c.Version = h.Version
	c.Globals = h.Globals
	c.StaticMemory = h.StaticMemory
	length := uint32(storyLength)
	if h.FileLength > length {
		length = h.FileLength
	}
	if length > c.ImageLength {
		c.ImageLength = length
	}
}

// Validate checks that a session can be built from the configuration.
func (c *Config) Validate() error {
	if c.Version < 3 || c.Version > 8 {
		return fmt.Errorf("version %d: %w", c.Version, zerrors.ErrUnsupportedVersion)
	}
	if c.ImageLength == 0 {
		return fmt.Errorf("image length must be positive")
	}
	if uint32(c.Globals)+480 > c.ImageLength {
		return fmt.Errorf("globals table at 0x%x does not fit an image of %d bytes", c.Globals, c.ImageLength)
	}
	if c.MaxBlockInstructions < 0 {
		return fmt.Errorf("max-block-instructions must not be negative")
	}
	return nil
}
