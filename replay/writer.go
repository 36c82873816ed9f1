package replay

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/murkland/tamahost/hal"
	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/state"
)

const flushEvery = 60

// Writer records bridge commands. It implements hal.Recorder.
type Writer struct {
	mu      sync.Mutex
	closer  io.Closer
	w       *zstd.Encoder
	pending int
}

var _ hal.Recorder = (*Writer)(nil)

// Create opens filename on fs and starts a replay from initial.
func Create(fs afero.Fs, filename string, codec *savefile.Codec, initial *state.State) (*Writer, error) {
	f, err := fs.Create(filename)
	if err != nil {
		return nil, err
	}

	rw, err := NewWriter(f, codec, initial)
	if err != nil {
		f.Close()
		return nil, err
	}
	rw.closer = f
	return rw, nil
}

// NewWriter writes the replay header to w. The header is flushed before
// returning.
func NewWriter(w io.Writer, codec *savefile.Codec, initial *state.State) (*Writer, error) {
	save, err := codec.Marshal(initial)
	if err != nil {
		return nil, err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}

	if _, err := zw.Write([]byte(replayHeader)); err != nil {
		zw.Close()
		return nil, err
	}

	if err := binary.Write(zw, binary.LittleEndian, uint8(replayVersion)); err != nil {
		zw.Close()
		return nil, err
	}

	if err := binary.Write(zw, binary.LittleEndian, uint32(len(save))); err != nil {
		zw.Close()
		return nil, err
	}

	if _, err := zw.Write(save); err != nil {
		zw.Close()
		return nil, err
	}

	if err := zw.Flush(); err != nil {
		zw.Close()
		return nil, err
	}

	return &Writer{w: zw}, nil
}

func (rw *Writer) write(ev Event) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := marshalEvent(rw.w, ev); err != nil {
		return err
	}

	rw.pending++
	if rw.pending < flushEvery {
		return nil
	}
	rw.pending = 0
	return rw.w.Flush()
}

func (rw *Writer) RecordButton(button hal.Button, pressed bool) error {
	return rw.write(Button{Button: uint8(button), Pressed: pressed})
}

func (rw *Writer) RecordStep(n uint32) error {
	return rw.write(Step{N: n})
}

func (rw *Writer) RecordRunFor(ms uint32, ticks uint32) error {
	return rw.write(RunFor{Ms: ms, Ticks: ticks})
}

func (rw *Writer) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.pending = 0
	return rw.w.Flush()
}

func (rw *Writer) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.w.Close(); err != nil {
		return err
	}
	if rw.closer != nil {
		if err := rw.closer.Close(); err != nil {
			return err
		}
	}
	return nil
}
