package heap

import (
	"context"
	"errors"
	"fmt"

	"github.com/murkland/tamahost/field"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

// PointerSize is the width of one pointer table entry.
const PointerSize = 4

// Core is the part of the core's surface the marshaler needs.
type Core interface {
	// StateAddr returns the address of the pointer table.
	StateAddr(ctx context.Context) (uint32, error)

	// StateSize returns the pointer table's size in bytes.
	StateSize(ctx context.Context) (uint32, error)

	// Memory returns a view of the core's memory, valid until the core
	// next runs.
	Memory(ctx context.Context) ([]byte, error)
}

type Marshaler struct {
	schema *schema.Schema
}

func NewMarshaler(s *schema.Schema) *Marshaler {
	return &Marshaler{s}
}

func (m *Marshaler) Schema() *schema.Schema {
	return m.schema
}

func (m *Marshaler) region(ctx context.Context, core Core) (*Region, []uint32, error) {
	base, err := core.StateAddr(ctx)
	if err != nil {
		return nil, nil, err
	}

	size, err := core.StateSize(ctx)
	if err != nil {
		return nil, nil, err
	}

	mem, err := core.Memory(ctx)
	if err != nil {
		return nil, nil, err
	}
	r := NewRegion(mem)

	if size%PointerSize != 0 || int(size/PointerSize) != m.schema.Len() {
		return nil, nil, fmt.Errorf("%w: pointer table is %d bytes, schema has %d fields", ErrSchemaMismatch, size, m.schema.Len())
	}

	ptrs := make([]uint32, m.schema.Len())
	for i := range ptrs {
		ptr, err := r.Read32(base + uint32(i*PointerSize))
		if err != nil {
			return nil, nil, fmt.Errorf("pointer table entry %d: %w", i, err)
		}
		ptrs[i] = ptr
	}

	return r, ptrs, nil
}

// Pull reads every field from the core into st. st is only modified once
// every field has been read.
func (m *Marshaler) Pull(ctx context.Context, core Core, st *state.State) error {
	if st.Schema() != m.schema {
		return fmt.Errorf("%w: state was built for a different schema", ErrSchemaMismatch)
	}

	r, ptrs, err := m.region(ctx, core)
	if err != nil {
		return err
	}

	values := make([]field.Value, len(ptrs))
	for i, addr := range ptrs {
		v, err := r.Decode(m.schema.At(i), addr)
		if err != nil {
			return err
		}
		values[i] = v
	}

	for i, v := range values {
		if err := st.Set(m.schema.At(i).Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Push writes every field of st into the core. Nothing is written unless
// every field encodes and fits.
func (m *Marshaler) Push(ctx context.Context, core Core, st *state.State) error {
	if st.Schema() != m.schema {
		return fmt.Errorf("%w: state was built for a different schema", ErrSchemaMismatch)
	}

	r, ptrs, err := m.region(ctx, core)
	if err != nil {
		return err
	}

	encoded := make([][]byte, len(ptrs))
	for i, addr := range ptrs {
		f := m.schema.At(i)
		v, _ := st.Get(f.Name)
		b, err := f.Encode(v)
		if err != nil {
			return err
		}
		if _, err := r.Slice(addr, len(b)); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		encoded[i] = b
	}

	for i, addr := range ptrs {
		if err := r.Write(addr, encoded[i]); err != nil {
			return err
		}
	}
	return nil
}
