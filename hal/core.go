package hal

import (
	"context"
	"fmt"

	"github.com/murkland/tamahost/heap"
)

// TicksPerSecond is the rate of the core's 1Hz timer source.
const TicksPerSecond = 32768

type Button uint8

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight

	NumButtons = 3
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return fmt.Sprintf("Button(%d)", uint8(b))
	}
}

func (b *Button) UnmarshalText(text []byte) error {
	switch string(text) {
	case "left":
		*b = ButtonLeft
	case "middle":
		*b = ButtonMiddle
	case "right":
		*b = ButtonRight
	default:
		return fmt.Errorf("unknown button: %s", string(text))
	}
	return nil
}

func (b Button) MarshalText() ([]byte, error) {
	if b >= NumButtons {
		return nil, fmt.Errorf("unknown button: %v", b)
	}
	return []byte(b.String()), nil
}

// Callbacks receives the core's output notifications. They are invoked
// synchronously from inside Step, RunFor and PressButton, with the context
// of the call that produced them.
type Callbacks interface {
	SetLCDMatrix(ctx context.Context, x uint8, y uint8, on bool)
	SetLCDIcon(ctx context.Context, icon uint8, on bool)

	// SetAudioFrequency takes the core's raw unit, tenths of a hertz.
	SetAudioFrequency(ctx context.Context, freq uint32)
	SetAudioPlay(ctx context.Context, enabled bool)
}

// Core is the entry point surface of an emulator core.
type Core interface {
	heap.Core

	// Step executes n instructions. Callbacks are invoked with ctx.
	Step(ctx context.Context, n uint32) error

	// RunFor runs for roughly ms milliseconds of emulated time and
	// returns the number of instructions executed.
	RunFor(ctx context.Context, ms uint32) (uint32, error)

	PressButton(ctx context.Context, button Button, pressed bool) error

	// SetCallbacks registers the receiver of output notifications.
	SetCallbacks(cb Callbacks)
}
