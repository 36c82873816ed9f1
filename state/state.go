package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/murkland/tamahost/field"
	"github.com/murkland/tamahost/schema"
)

var ErrUnknownField = errors.New("unknown field")

// State is a projection of device state, either of the core's live memory
// or of a persisted snapshot.
type State struct {
	schema *schema.Schema
	values map[string]field.Value
}

// New returns a zero-filled state for s.
func New(s *schema.Schema) *State {
	st := &State{
		schema: s,
		values: make(map[string]field.Value, s.Len()),
	}
	for i := 0; i < s.Len(); i++ {
		f := s.At(i)
		st.values[f.Name] = f.Zero()
	}
	return st
}

func (st *State) Schema() *schema.Schema {
	return st.schema
}

func (st *State) Get(name string) (field.Value, bool) {
	v, ok := st.values[name]
	return v, ok
}

// Set stores v under name after checking it against the schema. Blocks are
// copied.
func (st *State) Set(name string, v field.Value) error {
	f, ok := st.schema.ByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if err := f.Check(v); err != nil {
		return err
	}
	if blk, ok := v.(field.Block); ok {
		v = append(field.Block(nil), blk...)
	}
	st.values[name] = v
	return nil
}

// SetUint stores n, truncated to the field's width.
func (st *State) SetUint(name string, n uint32) error {
	f, ok := st.schema.ByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	switch f.Kind {
	case field.KindU8:
		return st.Set(name, field.U8(n))
	case field.KindU16:
		return st.Set(name, field.U16(n))
	case field.KindU32:
		return st.Set(name, field.U32(n))
	default:
		return fmt.Errorf("%w: %s is %s", field.ErrKindMismatch, name, f.Kind)
	}
}

// Uint returns an integer field widened to 32 bits; 0 for blocks or unknown
// names.
func (st *State) Uint(name string) uint32 {
	n, _ := field.Uint(st.values[name])
	return n
}

// Block returns a block field. The returned slice must not be modified.
func (st *State) Block(name string) []byte {
	blk, _ := st.values[name].(field.Block)
	return blk
}

func (st *State) Clone() *State {
	c := &State{
		schema: st.schema,
		values: make(map[string]field.Value, len(st.values)),
	}
	for k, v := range st.values {
		if blk, ok := v.(field.Block); ok {
			v = append(field.Block(nil), blk...)
		}
		c.values[k] = v
	}
	return c
}

func (st *State) Equal(other *State) bool {
	if st.schema != other.schema {
		return false
	}
	for i := 0; i < st.schema.Len(); i++ {
		name := st.schema.At(i).Name
		a, b := st.values[name], other.values[name]
		if ab, ok := a.(field.Block); ok {
			bb, ok := b.(field.Block)
			if !ok || !bytes.Equal(ab, bb) {
				return false
			}
			continue
		}
		if a != b {
			return false
		}
	}
	return true
}
