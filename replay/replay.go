package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/klauspost/compress/zstd"
	"github.com/lunixbochs/struc"

	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/state"
)

const replayVersion = 0x01
const replayHeader = "TAMR"

var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrUnknownEvent  = errors.New("unknown event")
)

type eventType uint8

const (
	eventTypeButton eventType = 0
	eventTypeStep   eventType = 1
	eventTypeRunFor eventType = 2
)

// Event is one command applied to the core.
type Event interface {
	eventType() eventType
}

type Button struct {
	Button  uint8 `struc:"uint8"`
	Pressed bool  `struc:"bool"`
}

func (Button) eventType() eventType { return eventTypeButton }

type Step struct {
	N uint32 `struc:"uint32"`
}

func (Step) eventType() eventType { return eventTypeStep }

// RunFor carries the tick count the core reported so playback can detect
// divergence.
type RunFor struct {
	Ms    uint32 `struc:"uint32"`
	Ticks uint32 `struc:"uint32"`
}

func (RunFor) eventType() eventType { return eventTypeRunFor }

type Replay struct {
	Initial *state.State
	Events  []Event

	// Truncated is set if the stream ended inside a record.
	Truncated bool
}

// Marshaled replay format is zstd compressed:
//
// header:
// u8[4]: TAMR
// u8: replay version
// u32: save size
// save size: initial state, in save file encoding
//
// events, repeated:
// u8: event type
// button: u8 button, u8 pressed
// step: u32 instructions
// run for: u32 ms, u32 ticks
func marshalEvent(w io.Writer, ev Event) error {
	if err := binary.Write(w, binary.LittleEndian, ev.eventType()); err != nil {
		return err
	}

	// struc only packs through a pointer.
	var body any
	switch ev := ev.(type) {
	case Button:
		body = &ev
	case Step:
		body = &ev
	case RunFor:
		body = &ev
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return struc.PackWithOrder(w, body, binary.LittleEndian)
}

func unmarshal[T Event](r io.Reader) (Event, error) {
	var ev T
	if err := struc.UnpackWithOrder(r, &ev, binary.LittleEndian); err != nil {
		return nil, err
	}
	return ev, nil
}

func unmarshalEvent(r io.Reader) (Event, error) {
	var typ eventType
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return nil, err
	}

	var ev Event
	var err error
	switch typ {
	case eventTypeButton:
		ev, err = unmarshal[Button](r)
	case eventTypeStep:
		ev, err = unmarshal[Step](r)
	case eventTypeRunFor:
		ev, err = unmarshal[RunFor](r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, typ)
	}
	if errors.Is(err, io.EOF) {
		// The type byte was read, so the record is incomplete.
		err = io.ErrUnexpectedEOF
	}
	return ev, err
}

func Unmarshal(r io.Reader, codec *savefile.Codec) (*Replay, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var header [4]byte
	if _, err := io.ReadFull(zr, header[:]); err != nil {
		return nil, err
	}

	if string(header[:]) != replayHeader {
		return nil, ErrInvalidFormat
	}

	var version uint8
	if err := binary.Read(zr, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %02x vs %02x", version, replayVersion)
	}

	var saveSize uint32
	if err := binary.Read(zr, binary.LittleEndian, &saveSize); err != nil {
		return nil, err
	}
	if int(saveSize) != codec.Size() {
		return nil, fmt.Errorf("%w: save size %d, expected %d", ErrInvalidFormat, saveSize, codec.Size())
	}

	saveBytes := make([]byte, int(saveSize))
	if _, err := io.ReadFull(zr, saveBytes); err != nil {
		return nil, err
	}
	initial, err := codec.Unmarshal(saveBytes)
	if err != nil {
		return nil, err
	}

	replay := &Replay{Initial: initial}
	for {
		ev, err := unmarshalEvent(zr)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zstd.ErrMagicMismatch) {
				log.Printf("replay was truncated")
				replay.Truncated = true
				break
			}
			return nil, err
		}
		replay.Events = append(replay.Events, ev)
	}

	return replay, nil
}
