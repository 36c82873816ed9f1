package schema

import (
	"errors"
	"fmt"

	"github.com/murkland/tamahost/field"
)

var ErrInvalid = errors.New("invalid schema")

// Schema is an ordered, immutable table of fields. The order is both the
// save format's wire order and the order of the core's pointer table.
type Schema struct {
	fields  []field.Field
	index   map[string]int
	payload int
}

func New(fields ...field.Field) (*Schema, error) {
	s := &Schema{
		fields: make([]field.Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalid, i)
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate field %s", ErrInvalid, f.Name)
		}
		switch f.Kind {
		case field.KindU8, field.KindU16, field.KindU32:
		case field.KindBytes:
			if f.Len <= 0 {
				return nil, fmt.Errorf("%w: block %s has length %d", ErrInvalid, f.Name, f.Len)
			}
		default:
			return nil, fmt.Errorf("%w: field %s has unknown kind %s", ErrInvalid, f.Name, f.Kind)
		}
		s.index[f.Name] = i
		s.payload += f.Width()
	}
	return s, nil
}

func MustNew(fields ...field.Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Len() int {
	return len(s.fields)
}

// PayloadSize is the sum of all field widths.
func (s *Schema) PayloadSize() int {
	return s.payload
}

func (s *Schema) At(i int) field.Field {
	return s.fields[i]
}

func (s *Schema) ByName(name string) (field.Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return field.Field{}, false
	}
	return s.fields[i], true
}

// Index returns the position of the named field, or -1.
func (s *Schema) Index(name string) int {
	i, ok := s.index[name]
	if !ok {
		return -1
	}
	return i
}

func (s *Schema) Fields() []field.Field {
	fields := make([]field.Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Offset returns the byte offset of field i within the payload.
func (s *Schema) Offset(i int) int {
	off := 0
	for _, f := range s.fields[:i] {
		off += f.Width()
	}
	return off
}
