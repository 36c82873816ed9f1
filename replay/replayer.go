package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/murkland/tamahost/hal"
)

var ErrDesync = errors.New("replay desynced")

// Play restores the replay's initial state into b and applies its events in
// order. onEvent, if set, is called after each event is applied.
func Play(ctx context.Context, b *hal.Bridge, replay *Replay, onEvent func(i int, ev Event)) error {
	if err := b.Push(ctx, replay.Initial); err != nil {
		return err
	}

	for i, ev := range replay.Events {
		switch ev := ev.(type) {
		case Button:
			if err := b.PressButton(hal.Button(ev.Button), ev.Pressed); err != nil {
				return err
			}
		case Step:
			if _, err := b.Step(ctx, ev.N); err != nil {
				return err
			}
		case RunFor:
			n, err := b.RunFor(ctx, ev.Ms)
			if err != nil {
				return err
			}
			if n != ev.Ticks {
				return fmt.Errorf("%w: event %d ran %d ticks, recorded %d", ErrDesync, i, n, ev.Ticks)
			}
		default:
			return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
		}

		if onEvent != nil {
			onEvent(i, ev)
		}
	}

	// Edges queued after the last advance.
	if _, err := b.Step(ctx, 0); err != nil {
		return err
	}
	return nil
}
