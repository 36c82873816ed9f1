package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/murkland/tamahost/hal"
)

type Core struct {
	WasmPath string
	RomDir   string
}

type Emulation struct {
	FrameIntervalMs int
	InputQueueSize  int
	RestoreOnStart  bool
}

type CompressionType int

const (
	CompressionTypeNone CompressionType = iota
	CompressionTypeZstd
)

func (ct *CompressionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*ct = CompressionTypeNone
	case "zstd":
		*ct = CompressionTypeZstd
	default:
		return fmt.Errorf("unknown compression type: %s", string(text))
	}
	return nil
}

func (ct CompressionType) MarshalText() ([]byte, error) {
	switch ct {
	case CompressionTypeNone:
		return []byte("none"), nil
	case CompressionTypeZstd:
		return []byte("zstd"), nil
	default:
		return nil, fmt.Errorf("unknown compression type: %v", ct)
	}
}

type Storage struct {
	// Dir is the save directory. Empty means the per-user default.
	Dir         string
	Compression CompressionType
}

type Autosave struct {
	IntervalSeconds int
	Tag             string
}

// Keymapping maps the characters read from stdin to buttons.
type Keymapping struct {
	Left   string
	Middle string
	Right  string
}

// Button resolves a key to a button.
func (km Keymapping) Button(key string) (hal.Button, bool) {
	switch key {
	case km.Left:
		return hal.ButtonLeft, true
	case km.Middle:
		return hal.ButtonMiddle, true
	case km.Right:
		return hal.ButtonRight, true
	}
	return 0, false
}

type Replay struct {
	Enable bool
	Dir    string
}

type Config struct {
	Core       Core
	Emulation  Emulation
	Storage    Storage
	Autosave   Autosave
	Keymapping Keymapping
	Replay     Replay
}

func Default() Config {
	return Config{
		Core: Core{
			WasmPath: "tama.wasm",
			RomDir:   "roms",
		},
		Emulation: Emulation{
			FrameIntervalMs: 33,
			InputQueueSize:  hal.DefaultQueueLength,
			RestoreOnStart:  true,
		},
		Storage: Storage{
			Compression: CompressionTypeZstd,
		},
		Autosave: Autosave{
			IntervalSeconds: 60,
			Tag:             "latest",
		},
		Keymapping: Keymapping{
			Left:   "a",
			Middle: "s",
			Right:  "d",
		},
		Replay: Replay{
			Enable: false,
			Dir:    "replays",
		},
	}
}

// Validate reports settings the session cannot run with.
func (c Config) Validate() error {
	if c.Emulation.FrameIntervalMs <= 0 {
		return fmt.Errorf("frame interval must be positive, got %d", c.Emulation.FrameIntervalMs)
	}
	if c.Emulation.InputQueueSize <= 0 {
		return fmt.Errorf("input queue size must be positive, got %d", c.Emulation.InputQueueSize)
	}
	if c.Autosave.IntervalSeconds < 0 {
		return fmt.Errorf("autosave interval must not be negative, got %d", c.Autosave.IntervalSeconds)
	}
	km := c.Keymapping
	if km.Left == "" || km.Middle == "" || km.Right == "" {
		return fmt.Errorf("keymapping has an unbound button")
	}
	if km.Left == km.Middle || km.Left == km.Right || km.Middle == km.Right {
		return fmt.Errorf("keymapping binds one key to two buttons")
	}
	return nil
}

func Save(config Config, w io.Writer) error {
	return toml.NewEncoder(w).Encode(config)
}

func Load(r io.Reader) (Config, error) {
	c := Default()

	if _, err := toml.NewDecoder(r).Decode(&c); err != nil {
		return c, err
	}

	if err := c.Validate(); err != nil {
		return c, err
	}

	return c, nil
}
