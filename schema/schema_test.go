package schema

import (
	"errors"
	"testing"

	"github.com/murkland/tamahost/field"
)

func TestTamaPayloadSize(t *testing.T) {
	want := 2 + 2 + 2 + 1 + 1 + 1 + 1 + 1 + 4 + 4 + 4 + 1 + 1 + 1 + 4 + 24 + 464
	if got := Tama.PayloadSize(); got != want || got != 518 {
		t.Errorf("PayloadSize() = %d, want %d", got, want)
	}
	if Tama.Len() != 17 {
		t.Errorf("Len() = %d, want 17", Tama.Len())
	}
}

func TestTamaOrder(t *testing.T) {
	want := []string{
		"pc", "x", "y", "a", "b", "np", "sp", "flags", "tick_counter",
		"clk_timer_timestamp", "prog_timer_timestamp", "prog_timer_enabled",
		"prog_timer_data", "prog_timer_rld", "call_depth", "interrupts", "memory",
	}
	for i, name := range want {
		if got := Tama.At(i).Name; got != name {
			t.Errorf("At(%d) = %s, want %s", i, got, name)
		}
		if got := Tama.Index(name); got != i {
			t.Errorf("Index(%s) = %d, want %d", name, got, i)
		}
	}
}

func TestByName(t *testing.T) {
	f, ok := Tama.ByName(FieldMemory)
	if !ok || f.Kind != field.KindBytes || f.Width() != MemorySize {
		t.Errorf("ByName(memory) = %v, %v", f, ok)
	}
	if _, ok := Tama.ByName("nope"); ok {
		t.Error("ByName(nope) reported ok")
	}
	if Tama.Index("nope") != -1 {
		t.Error("Index(nope) != -1")
	}
}

func TestOffset(t *testing.T) {
	if got := Tama.Offset(Tama.Index(FieldTickCounter)); got != 11 {
		t.Errorf("Offset(tick_counter) = %d, want 11", got)
	}
	if got := Tama.Offset(Tama.Len()); got != Tama.PayloadSize() {
		t.Errorf("Offset(len) = %d, want %d", got, Tama.PayloadSize())
	}
}

func TestFieldsIsCopy(t *testing.T) {
	fs := Tama.Fields()
	fs[0].Name = "changed"
	if Tama.At(0).Name != FieldPC {
		t.Error("Fields() exposed the underlying table")
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name   string
		fields []field.Field
	}{
		{"duplicate", []field.Field{field.Uint8("a"), field.Uint16("a")}},
		{"empty name", []field.Field{field.Uint8("")}},
		{"empty block", []field.Field{field.Bytes("m", 0)}},
		{"unknown kind", []field.Field{{Name: "z", Kind: field.Kind(42)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.fields...); !errors.Is(err, ErrInvalid) {
				t.Errorf("New() error = %v, want ErrInvalid", err)
			}
		})
	}
}
