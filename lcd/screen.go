package lcd

import (
	"context"
	"strings"
	"sync"
)

const (
	Width    = 32
	Height   = 16
	NumIcons = 8
)

var iconNames = [NumIcons]string{"food", "light", "game", "medicine", "bathroom", "meter", "discipline", "attention"}

func IconName(i int) string {
	if i < 0 || i >= NumIcons {
		return "?"
	}
	return iconNames[i]
}

// Screen is the host-side model of the device's display and buzzer. It is
// safe to read from one goroutine while the core writes from another.
type Screen struct {
	mu sync.Mutex

	pixels [Width][Height]bool
	dirty  map[[2]uint8]struct{}
	icons  [NumIcons]bool

	freq    uint32
	playing bool
}

func NewScreen() *Screen {
	return &Screen{dirty: map[[2]uint8]struct{}{}}
}

func (s *Screen) SetLCDMatrix(ctx context.Context, x uint8, y uint8, on bool) {
	if int(x) >= Width || int(y) >= Height {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixels[x][y] = on
	s.dirty[[2]uint8{x, y}] = struct{}{}
}

func (s *Screen) SetLCDIcon(ctx context.Context, icon uint8, on bool) {
	if int(icon) >= NumIcons {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.icons[icon] = on
}

func (s *Screen) SetAudioFrequency(ctx context.Context, freq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freq = freq
}

func (s *Screen) SetAudioPlay(ctx context.Context, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = enabled
}

func (s *Screen) Pixel(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixels[x][y]
}

func (s *Screen) Icon(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.icons[i]
}

// Frequency returns the buzzer frequency in hertz.
func (s *Screen) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.freq) / 10
}

func (s *Screen) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// TakeDirty returns the pixels written since the last call.
func (s *Screen) TakeDirty() [][2]uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirty) == 0 {
		return nil
	}
	dirty := make([][2]uint8, 0, len(s.dirty))
	for p := range s.dirty {
		dirty = append(dirty, p)
	}
	s.dirty = map[[2]uint8]struct{}{}
	return dirty
}

// String renders the matrix and the lit icons as text.
func (s *Screen) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if s.pixels[x][y] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	var lit []string
	for i, on := range s.icons {
		if on {
			lit = append(lit, iconNames[i])
		}
	}
	sb.WriteString("[" + strings.Join(lit, " ") + "]\n")
	return sb.String()
}
