package heap

import (
	"encoding/binary"
	"fmt"

	"github.com/murkland/tamahost/field"
)

// Region is a bounds-checked view of a core's flat memory. Addresses come
// from the core and are never trusted.
type Region struct {
	buf []byte
}

func NewRegion(buf []byte) *Region {
	return &Region{buf}
}

func (r *Region) Size() uint32 {
	return uint32(len(r.buf))
}

func (r *Region) check(addr uint32, n int) error {
	if n < 0 || uint64(addr)+uint64(n) > uint64(len(r.buf)) {
		return fmt.Errorf("%w: [0x%08x, +%d) outside %d byte region", field.ErrOutOfBounds, addr, n, len(r.buf))
	}
	return nil
}

// Slice returns n bytes at addr without copying.
func (r *Region) Slice(addr uint32, n int) ([]byte, error) {
	if err := r.check(addr, n); err != nil {
		return nil, err
	}
	return r.buf[addr : uint64(addr)+uint64(n)], nil
}

func (r *Region) Read8(addr uint32) (uint8, error) {
	b, err := r.Slice(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Region) Read16(addr uint32) (uint16, error) {
	b, err := r.Slice(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Region) Read32(addr uint32) (uint32, error) {
	b, err := r.Slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Region) Write(addr uint32, p []byte) error {
	dst, err := r.Slice(addr, len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

func (r *Region) Write32(addr uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return r.Write(addr, b[:])
}

// Decode reads f at addr.
func (r *Region) Decode(f field.Field, addr uint32) (field.Value, error) {
	b, err := r.Slice(addr, f.Width())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return f.Decode(b, 0)
}
