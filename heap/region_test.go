package heap

import (
	"errors"
	"testing"

	"github.com/murkland/tamahost/field"
)

func TestRegionBounds(t *testing.T) {
	r := NewRegion(make([]byte, 8))

	tests := []struct {
		name string
		addr uint32
		n    int
		ok   bool
	}{
		{"whole", 0, 8, true},
		{"last byte", 7, 1, true},
		{"empty at end", 8, 0, true},
		{"one past", 7, 2, false},
		{"past end", 9, 0, false},
		{"wraparound", 0xffffffff, 2, false},
		{"negative", 0, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Slice(tt.addr, tt.n)
			if tt.ok && err != nil {
				t.Errorf("Slice() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, field.ErrOutOfBounds) {
				t.Errorf("Slice() error = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestRegionReadWrite(t *testing.T) {
	r := NewRegion(make([]byte, 8))
	if err := r.Write32(4, 0xcafebabe); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Read32(4); v != 0xcafebabe {
		t.Errorf("Read32() = %#x", v)
	}
	if v, _ := r.Read16(4); v != 0xbabe {
		t.Errorf("Read16() = %#x", v)
	}
	if v, _ := r.Read8(7); v != 0xca {
		t.Errorf("Read8() = %#x", v)
	}
	if err := r.Write32(5, 1); !errors.Is(err, field.ErrOutOfBounds) {
		t.Errorf("Write32() error = %v", err)
	}
	if _, err := r.Decode(field.Uint32("t"), 6); !errors.Is(err, field.ErrOutOfBounds) {
		t.Errorf("Decode() error = %v", err)
	}
}
