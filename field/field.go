package field

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds  = errors.New("out of bounds")
	ErrKindMismatch = errors.New("kind mismatch")
	ErrSizeMismatch = errors.New("size mismatch")
)

type Kind uint8

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one of U8, U16, U32 or Block.
type Value interface {
	kind() Kind
}

type U8 uint8

func (U8) kind() Kind { return KindU8 }

type U16 uint16

func (U16) kind() Kind { return KindU16 }

type U32 uint32

func (U32) kind() Kind { return KindU32 }

// Block is a fixed-length run of raw bytes.
type Block []byte

func (Block) kind() Kind { return KindBytes }

// Uint widens an integer value. ok is false for blocks.
func Uint(v Value) (uint32, bool) {
	switch v := v.(type) {
	case U8:
		return uint32(v), true
	case U16:
		return uint32(v), true
	case U32:
		return uint32(v), true
	default:
		return 0, false
	}
}

// Field describes one named, typed slot of device state. Len is only
// meaningful for KindBytes.
type Field struct {
	Name string
	Kind Kind
	Len  int
}

func Uint8(name string) Field  { return Field{Name: name, Kind: KindU8} }
func Uint16(name string) Field { return Field{Name: name, Kind: KindU16} }
func Uint32(name string) Field { return Field{Name: name, Kind: KindU32} }

func Bytes(name string, n int) Field {
	return Field{Name: name, Kind: KindBytes, Len: n}
}

func (f Field) Width() int {
	switch f.Kind {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindBytes:
		return f.Len
	default:
		panic(fmt.Sprintf("field %s: unknown kind %s", f.Name, f.Kind))
	}
}

func (f Field) String() string {
	return fmt.Sprintf("%s:%s[%d]", f.Name, f.Kind, f.Width())
}

// Zero returns the zero value for the field.
func (f Field) Zero() Value {
	switch f.Kind {
	case KindU8:
		return U8(0)
	case KindU16:
		return U16(0)
	case KindU32:
		return U32(0)
	case KindBytes:
		return make(Block, f.Len)
	default:
		panic(fmt.Sprintf("field %s: unknown kind %s", f.Name, f.Kind))
	}
}

// Decode reads the field from buf at off. Blocks are copied out of buf.
func (f Field) Decode(buf []byte, off int) (Value, error) {
	w := f.Width()
	if off < 0 || off > len(buf) || len(buf)-off < w {
		return nil, fmt.Errorf("%w: decoding %s at %d from %d bytes", ErrOutOfBounds, f, off, len(buf))
	}
	b := buf[off : off+w]

	switch f.Kind {
	case KindU8:
		return U8(b[0]), nil
	case KindU16:
		return U16(binary.LittleEndian.Uint16(b)), nil
	case KindU32:
		return U32(binary.LittleEndian.Uint32(b)), nil
	case KindBytes:
		blk := make(Block, w)
		copy(blk, b)
		return blk, nil
	default:
		panic(fmt.Sprintf("field %s: unknown kind %s", f.Name, f.Kind))
	}
}

// Check reports whether v can be encoded as f.
func (f Field) Check(v Value) error {
	if v == nil {
		return fmt.Errorf("%w: %s has no value", ErrKindMismatch, f.Name)
	}
	if v.kind() != f.Kind {
		return fmt.Errorf("%w: %s wants %s, got %s", ErrKindMismatch, f.Name, f.Kind, v.kind())
	}
	if blk, ok := v.(Block); ok && len(blk) != f.Len {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrSizeMismatch, f.Name, f.Len, len(blk))
	}
	return nil
}

// Put encodes v into the first Width() bytes of dst.
func (f Field) Put(dst []byte, v Value) error {
	if err := f.Check(v); err != nil {
		return err
	}
	w := f.Width()
	if len(dst) < w {
		return fmt.Errorf("%w: encoding %s into %d bytes", ErrOutOfBounds, f, len(dst))
	}

	switch v := v.(type) {
	case U8:
		dst[0] = uint8(v)
	case U16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case U32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Block:
		copy(dst[:w], v)
	default:
		panic(fmt.Sprintf("field %s: unknown value %T", f.Name, v))
	}
	return nil
}

// Encode returns the Width() byte encoding of v.
func (f Field) Encode(v Value) ([]byte, error) {
	buf := make([]byte, f.Width())
	if err := f.Put(buf, v); err != nil {
		return nil, err
	}
	return buf, nil
}
