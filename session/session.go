package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/keegancsmith/nth"
	"github.com/murkland/ringbuf"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/murkland/tamahost/hal"
	"github.com/murkland/tamahost/lcd"
	"github.com/murkland/tamahost/store"
)

var errQuit = errors.New("quit")

const frameTimeWindow = 32

type Options struct {
	FrameInterval time.Duration

	// AutosaveInterval of zero disables autosave.
	AutosaveInterval time.Duration
	AutosaveTag      string

	// StatsInterval of zero disables frame time reporting.
	StatsInterval time.Duration

	Keys KeyFunc

	// Screen is redrawn to Render after any frame that changed it.
	Screen *lcd.Screen
	Render io.Writer
}

// Session paces a bridge in real time and applies commands read from an
// input stream between frames.
type Session struct {
	bridge *hal.Bridge
	saves  *store.Manager
	opts   Options

	cmds chan command

	// Frames until a tapped button is released.
	taps map[hal.Button]int

	frameTimesMu sync.RWMutex
	frameTimes   *ringbuf.RingBuf[time.Duration]
}

func New(bridge *hal.Bridge, saves *store.Manager, opts Options) *Session {
	return &Session{
		bridge:     bridge,
		saves:      saves,
		opts:       opts,
		cmds:       make(chan command, 16),
		taps:       map[hal.Button]int{},
		frameTimes: ringbuf.New[time.Duration](frameTimeWindow),
	}
}

// Run drives the bridge until ctx is done or a quit command is read. The
// state is saved under the autosave tag on the way out.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go readLines(in, lines)

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		return s.runLoop(ctx)
	})

	errg.Go(func() error {
		return s.handleInput(ctx, lines)
	})

	if s.opts.AutosaveInterval > 0 {
		errg.Go(func() error {
			return s.autosave(ctx)
		})
	}

	if s.opts.StatsInterval > 0 {
		errg.Go(func() error {
			return s.reportStats(ctx)
		})
	}

	err := errg.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	if s.saves != nil {
		if saveErr := s.save(context.Background(), s.opts.AutosaveTag); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}

// readLines is not tied to a context: a blocked read cannot be interrupted.
func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Printf("failed to read input: %s", err)
	}
}

func (s *Session) send(ctx context.Context, cmd command) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.cmds <- cmd:
		return nil
	}
}

func (s *Session) handleInput(ctx context.Context, lines <-chan string) error {
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			return nil
		}

		cmd, err := parseCommand(line, s.opts.Keys)
		if err != nil {
			log.Printf("%s", err)
			continue
		}
		if err := s.send(ctx, cmd); err != nil {
			return err
		}
	}
}

func (s *Session) autosave(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.AutosaveInterval):
		}

		if err := s.send(ctx, command{kind: commandSave, tag: s.opts.AutosaveTag}); err != nil {
			return err
		}
	}
}

func (s *Session) reportStats(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.StatsInterval):
		}

		log.Printf("ticks: %d, median frame time: %s", s.bridge.Ticks(), s.MedianFrameTime())
	}
}

// runLoop owns the bridge: every advance, pull and push happens here.
func (s *Session) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.cmds:
			if err := s.apply(ctx, cmd); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.frame(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) press(button hal.Button, pressed bool) {
	if err := s.bridge.PressButton(button, pressed); err != nil {
		log.Printf("failed to press %s: %s", button, err)
	}
}

func (s *Session) apply(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case commandTap:
		s.press(cmd.button, true)
		s.taps[cmd.button] = 1
	case commandHold:
		delete(s.taps, cmd.button)
		s.press(cmd.button, true)
	case commandRelease:
		delete(s.taps, cmd.button)
		s.press(cmd.button, false)
	case commandSave:
		if err := s.save(ctx, cmd.tag); err != nil {
			log.Printf("failed to save state: %s", err)
		}
	case commandLoad:
		if err := s.load(ctx, cmd.tag); err != nil {
			log.Printf("failed to load state: %s", err)
		}
	case commandQuit:
		return errQuit
	}
	return nil
}

func (s *Session) frame(ctx context.Context) error {
	start := time.Now()
	if _, err := s.bridge.RunFor(ctx, uint32(s.opts.FrameInterval.Milliseconds())); err != nil {
		return err
	}
	s.recordFrameTime(time.Since(start))

	for button, frames := range s.taps {
		frames--
		if frames > 0 {
			s.taps[button] = frames
			continue
		}
		delete(s.taps, button)
		s.press(button, false)
	}

	if s.opts.Screen != nil && s.opts.Render != nil && len(s.opts.Screen.TakeDirty()) > 0 {
		if _, err := fmt.Fprint(s.opts.Render, "\x1b[H\x1b[2J"+s.opts.Screen.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) save(ctx context.Context, tag string) error {
	if s.saves == nil {
		return errors.New("no save store")
	}
	st, err := s.bridge.Pull(ctx)
	if err != nil {
		return err
	}
	return s.saves.SaveState(st, tag)
}

func (s *Session) load(ctx context.Context, tag string) error {
	if s.saves == nil {
		return errors.New("no save store")
	}
	st, ok, err := s.saves.LoadState(tag)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no state saved under %q", tag)
	}
	return s.bridge.Push(ctx, st)
}

type orderableSlice[T constraints.Ordered] []T

func (s orderableSlice[T]) Len() int {
	return len(s)
}

func (s orderableSlice[T]) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s orderableSlice[T]) Less(i, j int) bool {
	return s[i] < s[j]
}

func (s *Session) recordFrameTime(d time.Duration) {
	s.frameTimesMu.Lock()
	defer s.frameTimesMu.Unlock()

	if s.frameTimes.Free() == 0 {
		s.frameTimes.Advance(1)
	}
	s.frameTimes.Push([]time.Duration{d})
}

// MedianFrameTime returns the median wall time of recent frames.
func (s *Session) MedianFrameTime() time.Duration {
	s.frameTimesMu.RLock()
	defer s.frameTimesMu.RUnlock()

	if s.frameTimes.Used() == 0 {
		return 0
	}

	times := make([]time.Duration, s.frameTimes.Used())
	s.frameTimes.Peek(times, 0)

	i := len(times) / 2
	nth.Element(orderableSlice[time.Duration](times), i)
	return times[i]
}
