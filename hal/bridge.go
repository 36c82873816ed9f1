package hal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/murkland/tamahost/heap"
	"github.com/murkland/tamahost/input"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

var (
	// ErrBusy is returned when state is marshaled from inside a callback of
	// the same bridge.
	ErrBusy           = errors.New("core is advancing")
	ErrInputQueueFull = errors.New("input queue full")
	ErrUnknownButton  = errors.New("unknown button")
)

const DefaultQueueLength = 64

// Recorder observes every command applied to the core.
type Recorder interface {
	RecordButton(button Button, pressed bool) error
	RecordStep(n uint32) error
	RecordRunFor(ms uint32, ticks uint32) error
}

type Options struct {
	QueueLength int
}

// advancingKey marks the context handed to the core while a bridge holds it.
// Its value is the bridge.
type advancingKey struct{}

// Bridge owns all traffic to and from a core. Advancing the core and
// marshaling its state never overlap: Pull and Push from other goroutines
// wait for an in-flight advance, while Pull and Push from a sink callback
// fail with ErrBusy. Sinks must pass on the context they were called with.
type Bridge struct {
	mu        sync.Mutex
	core      Core
	marshaler *heap.Marshaler
	queue     *input.Queue
	ticks     uint64

	sinkMu   sync.RWMutex
	sink     Callbacks
	recorder Recorder
}

func New(core Core, s *schema.Schema, opts Options) *Bridge {
	if opts.QueueLength <= 0 {
		opts.QueueLength = DefaultQueueLength
	}
	b := &Bridge{
		core:      core,
		marshaler: heap.NewMarshaler(s),
		queue:     input.NewQueue(opts.QueueLength),
	}
	core.SetCallbacks(b)
	return b
}

func (b *Bridge) Schema() *schema.Schema {
	return b.marshaler.Schema()
}

// SetSink registers the receiver of display and audio output. nil runs
// headless.
func (b *Bridge) SetSink(sink Callbacks) {
	b.sinkMu.Lock()
	defer b.sinkMu.Unlock()
	b.sink = sink
}

func (b *Bridge) SetRecorder(r Recorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorder = r
}

// Ticks returns the number of instructions executed through this bridge.
func (b *Bridge) Ticks() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ticks
}

// PressButton queues an edge to be applied at the next step boundary.
func (b *Bridge) PressButton(button Button, pressed bool) error {
	if button >= NumButtons {
		return fmt.Errorf("%w: %d", ErrUnknownButton, button)
	}
	if err := b.queue.Add(input.Edge{Button: uint8(button), Pressed: pressed}); err != nil {
		return ErrInputQueueFull
	}
	return nil
}

func (b *Bridge) advancing(ctx context.Context) context.Context {
	return context.WithValue(ctx, advancingKey{}, b)
}

func (b *Bridge) isAdvancing(ctx context.Context) bool {
	owner, _ := ctx.Value(advancingKey{}).(*Bridge)
	return owner == b
}

// applyInputLocked hands queued edges to the core one at a time. If the core
// rejects an edge, that edge is dropped and the ones behind it stay queued
// for the next step boundary.
func (b *Bridge) applyInputLocked(ctx context.Context) error {
	for n := b.queue.Len(); n > 0; n-- {
		edge, ok := b.queue.Pop()
		if !ok {
			break
		}
		btn := Button(edge.Button)
		if err := b.core.PressButton(ctx, btn, edge.Pressed); err != nil {
			return fmt.Errorf("press %s: %w", btn, err)
		}
		if b.recorder != nil {
			if err := b.recorder.RecordButton(btn, edge.Pressed); err != nil {
				return err
			}
		}
	}
	return nil
}

// Step executes n instructions and returns the accumulated tick count.
func (b *Bridge) Step(ctx context.Context, n uint32) (uint64, error) {
	if b.isAdvancing(ctx) {
		return 0, ErrBusy
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx = b.advancing(ctx)

	if err := b.applyInputLocked(ctx); err != nil {
		return b.ticks, err
	}
	if n == 0 {
		return b.ticks, nil
	}

	if err := b.core.Step(ctx, n); err != nil {
		return b.ticks, err
	}

	b.ticks += uint64(n)
	if b.recorder != nil {
		if err := b.recorder.RecordStep(n); err != nil {
			return b.ticks, err
		}
	}
	return b.ticks, nil
}

// RunFor runs for ms milliseconds of emulated time and returns the number
// of ticks advanced.
func (b *Bridge) RunFor(ctx context.Context, ms uint32) (uint32, error) {
	if b.isAdvancing(ctx) {
		return 0, ErrBusy
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx = b.advancing(ctx)

	if err := b.applyInputLocked(ctx); err != nil {
		return 0, err
	}
	if ms == 0 {
		return 0, nil
	}

	n, err := b.core.RunFor(ctx, ms)
	if err != nil {
		return 0, err
	}

	b.ticks += uint64(n)
	if b.recorder != nil {
		if err := b.recorder.RecordRunFor(ms, n); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Pull snapshots the core's state. Callers on other goroutines wait for an
// in-flight advance to finish.
func (b *Bridge) Pull(ctx context.Context) (*state.State, error) {
	if b.isAdvancing(ctx) {
		return nil, ErrBusy
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st := state.New(b.marshaler.Schema())
	if err := b.marshaler.Pull(ctx, b.core, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Push overwrites the core's state.
func (b *Bridge) Push(ctx context.Context, st *state.State) error {
	if b.isAdvancing(ctx) {
		return ErrBusy
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.marshaler.Push(ctx, b.core, st)
}

func (b *Bridge) dispatch(f func(sink Callbacks)) {
	b.sinkMu.RLock()
	sink := b.sink
	b.sinkMu.RUnlock()
	if sink == nil {
		return
	}
	f(sink)
}

func (b *Bridge) SetLCDMatrix(ctx context.Context, x uint8, y uint8, on bool) {
	b.dispatch(func(sink Callbacks) { sink.SetLCDMatrix(ctx, x, y, on) })
}

func (b *Bridge) SetLCDIcon(ctx context.Context, icon uint8, on bool) {
	b.dispatch(func(sink Callbacks) { sink.SetLCDIcon(ctx, icon, on) })
}

func (b *Bridge) SetAudioFrequency(ctx context.Context, freq uint32) {
	b.dispatch(func(sink Callbacks) { sink.SetAudioFrequency(ctx, freq) })
}

func (b *Bridge) SetAudioPlay(ctx context.Context, enabled bool) {
	b.dispatch(func(sink Callbacks) { sink.SetAudioPlay(ctx, enabled) })
}
