package savefile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

var (
	ErrVersionMismatch = errors.New("save file version mismatch")
	ErrTruncated       = errors.New("save file truncated")
	ErrTrailingData    = errors.New("save file has trailing data")
	ErrEncoding        = errors.New("save file is not valid base64")
	ErrInvalidTag      = errors.New("invalid version tag")
	ErrSchemaMismatch  = errors.New("state was built for a different schema")
)

const TagSize = 8

// DefaultTag is the version tag of saves laid out as schema.Tama.
const DefaultTag = "tama0001"

var Default = MustNewCodec(schema.Tama, DefaultTag)

// Codec converts states to and from the save format:
//
//	u8[8]: version tag
//	for each schema field, in order:
//	  u8[width]: little-endian value
//
// There are no length prefixes or optional fields. A schema change needs a
// new tag; old saves are then unreadable.
type Codec struct {
	schema *schema.Schema
	tag    string
}

func NewCodec(s *schema.Schema, tag string) (*Codec, error) {
	if len(tag) != TagSize {
		return nil, fmt.Errorf("%w: %q is not %d bytes", ErrInvalidTag, tag, TagSize)
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] < 0x20 || tag[i] > 0x7e {
			return nil, fmt.Errorf("%w: %q is not printable ascii", ErrInvalidTag, tag)
		}
	}
	return &Codec{s, tag}, nil
}

func MustNewCodec(s *schema.Schema, tag string) *Codec {
	c, err := NewCodec(s, tag)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec) Tag() string {
	return c.tag
}

func (c *Codec) Schema() *schema.Schema {
	return c.schema
}

// Size is the length of a marshaled save before text encoding.
func (c *Codec) Size() int {
	return TagSize + c.schema.PayloadSize()
}

func (c *Codec) Marshal(st *state.State) ([]byte, error) {
	if st.Schema() != c.schema {
		return nil, ErrSchemaMismatch
	}

	buf := make([]byte, c.Size())
	copy(buf, c.tag)

	off := TagSize
	for i := 0; i < c.schema.Len(); i++ {
		f := c.schema.At(i)
		v, _ := st.Get(f.Name)
		if err := f.Put(buf[off:], v); err != nil {
			return nil, err
		}
		off += f.Width()
	}
	return buf, nil
}

// Unmarshal decodes a marshaled save into a fresh state. The tag is checked
// before anything else is decoded.
func (c *Codec) Unmarshal(buf []byte) (*state.State, error) {
	if len(buf) < TagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(buf))
	}
	if tag := string(buf[:TagSize]); tag != c.tag {
		return nil, fmt.Errorf("%w: %q vs %q", ErrVersionMismatch, tag, c.tag)
	}
	if len(buf) < c.Size() {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrTruncated, len(buf), c.Size())
	}
	if len(buf) > c.Size() {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrTrailingData, len(buf), c.Size())
	}

	st := state.New(c.schema)
	off := TagSize
	for i := 0; i < c.schema.Len(); i++ {
		f := c.schema.At(i)
		v, err := f.Decode(buf, off)
		if err != nil {
			return nil, err
		}
		if err := st.Set(f.Name, v); err != nil {
			return nil, err
		}
		off += f.Width()
	}
	return st, nil
}

// Export returns the save as base64 text.
func (c *Codec) Export(st *state.State) (string, error) {
	buf, err := c.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Import reverses Export. Surrounding whitespace is ignored. Text that was
// cut short reports ErrTruncated rather than ErrEncoding.
func (c *Codec) Import(blob string) (*state.State, error) {
	blob = strings.TrimSpace(blob)
	if len(blob)%4 == 0 {
		buf, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrEncoding, err)
		}
		return c.Unmarshal(buf)
	}

	// Decode the whole quantums that survived so the tag can still be checked.
	raw := strings.TrimRight(blob, "=")
	if len(raw)%4 == 1 {
		raw = raw[:len(raw)-1]
	}
	buf, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncoding, err)
	}
	if _, err := c.Unmarshal(buf); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %d characters of unpadded base64", ErrTruncated, len(blob))
}
