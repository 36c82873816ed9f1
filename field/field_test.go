package field

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value Value
		want  []byte
	}{
		{"u8", Uint8("a"), U8(0xab), []byte{0xab}},
		{"u16", Uint16("pc"), U16(0x1234), []byte{0x34, 0x12}},
		{"u16 max", Uint16("pc"), U16(0xffff), []byte{0xff, 0xff}},
		{"u32", Uint32("tick"), U32(0xdeadbeef), []byte{0xef, 0xbe, 0xad, 0xde}},
		{"bytes", Bytes("mem", 3), Block{1, 2, 3}, []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.field.Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(enc, tt.want) {
				t.Errorf("Encode() = %x, want %x", enc, tt.want)
			}

			buf := append([]byte{0xee}, enc...)
			got, err := tt.field.Decode(buf, 1)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if blk, ok := got.(Block); ok {
				if !bytes.Equal(blk, tt.value.(Block)) {
					t.Errorf("Decode() = %x, want %x", blk, tt.value)
				}
				return
			}
			if got != tt.value {
				t.Errorf("Decode() = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		buf   []byte
		off   int
	}{
		{"u8 empty", Uint8("a"), nil, 0},
		{"u16 one short", Uint16("pc"), []byte{1, 2, 3}, 2},
		{"u32 past end", Uint32("t"), []byte{1, 2, 3, 4}, 5},
		{"negative offset", Uint8("a"), []byte{1}, -1},
		{"block short", Bytes("m", 4), []byte{1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.field.Decode(tt.buf, tt.off); !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Decode() error = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestDecodeBlockCopies(t *testing.T) {
	buf := []byte{1, 2, 3}
	v, err := Bytes("m", 3).Decode(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 9
	if v.(Block)[0] != 1 {
		t.Error("decoded block aliases the source buffer")
	}
}

func TestEncodeMismatch(t *testing.T) {
	if _, err := Uint16("pc").Encode(U8(1)); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("wrong variant: error = %v, want ErrKindMismatch", err)
	}
	if _, err := Uint16("pc").Encode(nil); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("nil value: error = %v, want ErrKindMismatch", err)
	}
	if _, err := Bytes("m", 4).Encode(Block{1, 2}); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short block: error = %v, want ErrSizeMismatch", err)
	}
	if err := Uint32("t").Put(make([]byte, 3), U32(1)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("short dst: error = %v, want ErrOutOfBounds", err)
	}
}

func TestZeroAndUint(t *testing.T) {
	for _, f := range []Field{Uint8("a"), Uint16("b"), Uint32("c"), Bytes("d", 5)} {
		z := f.Zero()
		if err := f.Check(z); err != nil {
			t.Errorf("%s: zero value rejected: %v", f, err)
		}
		if n, ok := Uint(z); ok && n != 0 {
			t.Errorf("%s: zero value = %d", f, n)
		}
	}
	if _, ok := Uint(Block{1}); ok {
		t.Error("Uint(Block) reported ok")
	}
	if n, _ := Uint(U16(0x1234)); n != 0x1234 {
		t.Errorf("Uint(U16) = %#x", n)
	}
}
