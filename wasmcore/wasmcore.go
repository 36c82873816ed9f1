// Package wasmcore runs the tamalib core compiled to WebAssembly.
package wasmcore

import (
	"bytes"
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/murkland/tamahost/hal"
)

var ErrMissingExport = errors.New("missing export")

// errIdle unwinds the guest out of its idle loop.
var errIdle = errors.New("core went idle")

const (
	exportStep      = "void_tama_step"
	exportRunFor    = "u32t_tama_run_for"
	exportButton    = "void_tama_button"
	exportState     = "statet_tama_get_cpu_state"
	exportStateSize = "sizet_tama_get_cpu_state_size"
)

// RomPath is where the core looks for its program inside the mounted
// directory.
const RomPath = "/tama.b"

type Config struct {
	// RomDir is mounted as the guest's root directory.
	RomDir string

	// InitFunc is called once after instantiation, if exported. It may
	// finish by entering the core's idle loop: the first emscripten_sleep
	// ends the call.
	InitFunc string
}

type Core struct {
	runtime wazero.Runtime
	mod     api.Module

	step, runFor, button, state, stateSize api.Function

	cbMu sync.RWMutex
	cb   hal.Callbacks
}

var _ hal.Core = (*Core)(nil)

// New compiles and instantiates the core. Close must be called to release
// the runtime.
func New(ctx context.Context, wasm []byte, cfg Config) (*Core, error) {
	c := &Core{runtime: wazero.NewRuntime(ctx)}

	if err := c.instantiate(ctx, wasm, cfg); err != nil {
		c.runtime.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Core) instantiate(ctx context.Context, wasm []byte, cfg Config) error {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, c.runtime); err != nil {
		return errors.Wrap(err, "failed to instantiate wasi")
	}

	env := c.runtime.NewHostModuleBuilder("env")
	for name, fn := range c.hostFuncs() {
		env.NewFunctionBuilder().WithFunc(fn).Export(name)
	}
	if _, err := env.Instantiate(ctx); err != nil {
		return errors.Wrap(err, "failed to instantiate host module")
	}

	compiled, err := c.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return errors.Wrap(err, "failed to compile core")
	}

	modCfg := wazero.NewModuleConfig().
		WithName("tama").
		WithStartFunctions("_initialize").
		WithStdout(&logWriter{prefix: "core: "}).
		WithStderr(&logWriter{prefix: "core error: "})
	if cfg.RomDir != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(cfg.RomDir, "/"))
	}

	c.mod, err = c.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return errors.Wrap(err, "failed to instantiate core")
	}

	for name, fn := range map[string]*api.Function{
		exportStep:      &c.step,
		exportRunFor:    &c.runFor,
		exportButton:    &c.button,
		exportState:     &c.state,
		exportStateSize: &c.stateSize,
	} {
		*fn = c.mod.ExportedFunction(name)
		if *fn == nil {
			return errors.Wrap(ErrMissingExport, name)
		}
	}

	if cfg.InitFunc != "" {
		if init := c.mod.ExportedFunction(cfg.InitFunc); init != nil {
			if _, err := init.Call(ctx); err != nil && !errors.Is(err, errIdle) {
				return errors.Wrapf(err, "failed to call %s", cfg.InitFunc)
			}
		}
	}

	log.Printf("core loaded, rom at %s%s", cfg.RomDir, RomPath)
	return nil
}

func (c *Core) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}

func (c *Core) SetCallbacks(cb hal.Callbacks) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.cb = cb
}

func (c *Core) callbacks() hal.Callbacks {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return c.cb
}

// hostFuncs are the env imports of the core. Each callback receives the
// context of the guest call that made it.
func (c *Core) hostFuncs() map[string]any {
	return map[string]any{
		"set_lcd_matrix":      c.setLCDMatrix,
		"set_lcd_icon":        c.setLCDIcon,
		"set_audio_frequency": c.setAudioFrequency,
		"set_audio_play":      c.setAudioPlay,
		"emscripten_sleep":    c.sleep,
	}
}

func (c *Core) setLCDMatrix(ctx context.Context, x uint32, y uint32, val uint32) {
	if cb := c.callbacks(); cb != nil {
		cb.SetLCDMatrix(ctx, uint8(x), uint8(y), val != 0)
	}
}

func (c *Core) setLCDIcon(ctx context.Context, icon uint32, val uint32) {
	if cb := c.callbacks(); cb != nil {
		cb.SetLCDIcon(ctx, uint8(icon), val != 0)
	}
}

func (c *Core) setAudioFrequency(ctx context.Context, freq uint32) {
	if cb := c.callbacks(); cb != nil {
		cb.SetAudioFrequency(ctx, freq)
	}
}

func (c *Core) setAudioPlay(ctx context.Context, en uint32) {
	if cb := c.callbacks(); cb != nil {
		cb.SetAudioPlay(ctx, en != 0)
	}
}

// sleep is only reached from the guest's main loop, after the core is set
// up. The host drives time itself, so the call is abandoned there.
func (c *Core) sleep(ctx context.Context, ms uint32) {
	panic(errIdle)
}

func (c *Core) Step(ctx context.Context, n uint32) error {
	if _, err := c.step.Call(ctx, api.EncodeU32(n)); err != nil {
		return errors.Wrap(err, "step")
	}
	return nil
}

func (c *Core) RunFor(ctx context.Context, ms uint32) (uint32, error) {
	res, err := c.runFor.Call(ctx, api.EncodeU32(ms))
	if err != nil {
		return 0, errors.Wrap(err, "run for")
	}
	return api.DecodeU32(res[0]), nil
}

func (c *Core) PressButton(ctx context.Context, button hal.Button, pressed bool) error {
	var st uint32
	if pressed {
		st = 1
	}
	if _, err := c.button.Call(ctx, api.EncodeU32(uint32(button)), api.EncodeU32(st)); err != nil {
		return errors.Wrap(err, "button")
	}
	return nil
}

func (c *Core) StateAddr(ctx context.Context) (uint32, error) {
	res, err := c.state.Call(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "get state")
	}
	return api.DecodeU32(res[0]), nil
}

func (c *Core) StateSize(ctx context.Context) (uint32, error) {
	res, err := c.stateSize.Call(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "get state size")
	}
	return api.DecodeU32(res[0]), nil
}

// Memory returns a live view of the guest's linear memory. It is invalidated
// if the guest grows its memory.
func (c *Core) Memory(ctx context.Context) ([]byte, error) {
	mem := c.mod.Memory()
	if mem == nil {
		return nil, errors.New("core exports no memory")
	}
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		return nil, errors.New("failed to read core memory")
	}
	return buf, nil
}

// logWriter forwards the guest's stdio to the log, one line at a time.
type logWriter struct {
	mu     sync.Mutex
	prefix string
	buf    bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		log.Printf("%s%s", w.prefix, line[:len(line)-1])
	}
	return len(p), nil
}
