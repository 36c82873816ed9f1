package savefile

import (
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"

	"github.com/murkland/tamahost/field"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

func randomState(t *testing.T, rng *rand.Rand) *state.State {
	t.Helper()

	st := state.New(schema.Tama)
	for _, f := range schema.Tama.Fields() {
		var v field.Value
		switch f.Kind {
		case field.KindU8:
			v = field.U8(rng.Uint32())
		case field.KindU16:
			v = field.U16(rng.Uint32())
		case field.KindU32:
			v = field.U32(rng.Uint32())
		case field.KindBytes:
			blk := make(field.Block, f.Len)
			rng.Read(blk)
			v = blk
		}
		if err := st.Set(f.Name, v); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		want := randomState(t, rng)

		blob, err := Default.Export(want)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Default.Import(blob)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if !got.Equal(want) {
			t.Fatalf("iteration %d: round trip changed state", i)
		}
	}
}

func TestZeroStateSize(t *testing.T) {
	blob, err := Default.Export(state.New(schema.Tama))
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 8+518 || Default.Size() != 526 {
		t.Errorf("decoded length = %d, want 526", len(raw))
	}
	if string(raw[:8]) != "tama0001" {
		t.Errorf("tag = %q", raw[:8])
	}
	for i, b := range raw[8:] {
		if b != 0 {
			t.Fatalf("payload byte %d = %#x", i, b)
		}
	}
}

func TestWireLayout(t *testing.T) {
	st := state.New(schema.Tama)
	st.SetUint(schema.FieldPC, 0x0102)
	st.SetUint(schema.FieldTickCounter, 0x0a0b0c0d)

	raw, err := Default.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	if raw[8] != 0x02 || raw[9] != 0x01 {
		t.Errorf("pc bytes = %x", raw[8:10])
	}
	off := 8 + schema.Tama.Offset(schema.Tama.Index(schema.FieldTickCounter))
	if raw[off] != 0x0d || raw[off+3] != 0x0a {
		t.Errorf("tick_counter bytes = %x", raw[off:off+4])
	}
}

func TestTamperedTag(t *testing.T) {
	raw, err := Default.Marshal(randomState(t, rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < TagSize; i++ {
		for _, flip := range []byte{0x01, 0x80, 0xff} {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= flip

			st, err := Default.Import(base64.StdEncoding.EncodeToString(tampered))
			if !errors.Is(err, ErrVersionMismatch) {
				t.Errorf("byte %d ^ %#x: error = %v, want ErrVersionMismatch", i, flip, err)
			}
			if st != nil {
				t.Errorf("byte %d ^ %#x: returned a state", i, flip)
			}
		}
	}
}

func TestTruncated(t *testing.T) {
	raw, err := Default.Marshal(state.New(schema.Tama))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{"final byte removed", raw[:len(raw)-1], ErrTruncated},
		{"tag only", raw[:TagSize], ErrTruncated},
		{"partial tag", raw[:3], ErrTruncated},
		{"empty", nil, ErrTruncated},
		{"extra byte", append(append([]byte(nil), raw...), 0), ErrTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Default.Import(base64.StdEncoding.EncodeToString(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Import() error = %v, want %v", err, tt.wantErr)
			}
			if st != nil {
				t.Error("Import() returned a state")
			}
		})
	}
}

func TestImportEncoding(t *testing.T) {
	if _, err := Default.Import("not base64!"); !errors.Is(err, ErrEncoding) {
		t.Errorf("Import() error = %v, want ErrEncoding", err)
	}

	blob, _ := Default.Export(state.New(schema.Tama))
	if _, err := Default.Import("  " + blob + "\n"); err != nil {
		t.Errorf("Import() with surrounding whitespace: %v", err)
	}
}

func TestNewCodec(t *testing.T) {
	for _, tag := range []string{"", "tama01", "tama00001", "tama\x00001"} {
		if _, err := NewCodec(schema.Tama, tag); !errors.Is(err, ErrInvalidTag) {
			t.Errorf("NewCodec(%q) error = %v", tag, err)
		}
	}

	v2 := MustNewCodec(schema.Tama, "tama0002")
	blob, _ := Default.Export(state.New(schema.Tama))
	if _, err := v2.Import(blob); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("v2 Import(v1 blob) error = %v", err)
	}
}

func TestTruncatedText(t *testing.T) {
	blob, err := Default.Export(state.New(schema.Tama))
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{len(blob) - 1, len(blob) - 2, len(blob) - 3, len(blob) - 4, 12, 5, 1} {
		st, err := Default.Import(blob[:n])
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("Import(blob[:%d]) error = %v, want ErrTruncated", n, err)
		}
		if st != nil {
			t.Errorf("Import(blob[:%d]) returned a state", n)
		}
	}

	// A cut tag is still checked before the length.
	other := MustNewCodec(schema.Tama, "tama0002")
	if _, err := other.Import(blob[:len(blob)-3]); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("other codec Import(cut blob) error = %v, want ErrVersionMismatch", err)
	}
}

func TestMarshalSchemaMismatch(t *testing.T) {
	other := schema.MustNew(field.Uint8("a"))
	if _, err := Default.Marshal(state.New(other)); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Marshal() error = %v, want ErrSchemaMismatch", err)
	}
	if _, err := Default.Export(state.New(other)); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Export() error = %v, want ErrSchemaMismatch", err)
	}
}
