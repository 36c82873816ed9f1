package heap_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/murkland/tamahost/fakecore"
	"github.com/murkland/tamahost/field"
	"github.com/murkland/tamahost/heap"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

func fill(core *fakecore.Core, seed int64) {
	rand.New(rand.NewSource(seed)).Read(core.Bytes()[fakecore.TableAddr+schema.Tama.Len()*heap.PointerSize:])
}

func TestPullKnownValues(t *testing.T) {
	ctx := context.Background()
	core := fakecore.New(schema.Tama)
	mem := core.Bytes()

	mem[core.Addr(schema.FieldPC)] = 0x34
	mem[core.Addr(schema.FieldPC)+1] = 0x12
	mem[core.Addr(schema.FieldA)] = 0x0a
	copy(mem[core.Addr(schema.FieldTickCounter):], []byte{0x78, 0x56, 0x34, 0x12})
	mem[core.Addr(schema.FieldMemory)+schema.MemorySize-1] = 0xff

	st := state.New(schema.Tama)
	if err := heap.NewMarshaler(schema.Tama).Pull(ctx, core, st); err != nil {
		t.Fatal(err)
	}

	if got := st.Uint(schema.FieldPC); got != 0x1234 {
		t.Errorf("pc = %#x, want 0x1234", got)
	}
	if got := st.Uint(schema.FieldA); got != 0x0a {
		t.Errorf("a = %#x, want 0xa", got)
	}
	if got := st.Uint(schema.FieldTickCounter); got != 0x12345678 {
		t.Errorf("tick_counter = %#x", got)
	}
	if got := st.Block(schema.FieldMemory)[schema.MemorySize-1]; got != 0xff {
		t.Errorf("memory[last] = %#x", got)
	}
}

func TestPullPushFidelity(t *testing.T) {
	ctx := context.Background()
	core := fakecore.New(schema.Tama)
	fill(core, 1)
	before := append([]byte(nil), core.Bytes()...)

	m := heap.NewMarshaler(schema.Tama)
	st := state.New(schema.Tama)
	if err := m.Pull(ctx, core, st); err != nil {
		t.Fatal(err)
	}
	if err := m.Push(ctx, core, st); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(before, core.Bytes()) {
		t.Error("pull then push changed foreign memory")
	}
}

func TestPushWrites(t *testing.T) {
	ctx := context.Background()
	core := fakecore.New(schema.Tama)

	st := state.New(schema.Tama)
	st.SetUint(schema.FieldY, 0xbeef)
	ints := make(field.Block, schema.InterruptsSize)
	ints[3] = 1
	st.Set(schema.FieldInterrupts, ints)

	if err := heap.NewMarshaler(schema.Tama).Push(ctx, core, st); err != nil {
		t.Fatal(err)
	}

	r := heap.NewRegion(core.Bytes())
	if y, _ := r.Read16(core.Addr(schema.FieldY)); y != 0xbeef {
		t.Errorf("y = %#x", y)
	}
	if b, _ := r.Read8(core.Addr(schema.FieldInterrupts) + 3); b != 1 {
		t.Errorf("interrupts[3] = %d", b)
	}
}

func TestFieldIsolation(t *testing.T) {
	ctx := context.Background()
	m := heap.NewMarshaler(schema.Tama)

	good := fakecore.New(schema.Tama)
	fill(good, 2)
	want := state.New(schema.Tama)
	if err := m.Pull(ctx, good, want); err != nil {
		t.Fatal(err)
	}

	bad := fakecore.New(schema.Tama)
	fill(bad, 2)
	memIdx := schema.Tama.Index(schema.FieldMemory)
	// Point memory at the start of the pointer table instead.
	bad.SetPointer(memIdx, fakecore.TableAddr)

	got := state.New(schema.Tama)
	if err := m.Pull(ctx, bad, got); err != nil {
		t.Fatal(err)
	}

	for _, f := range schema.Tama.Fields() {
		if f.Name == schema.FieldMemory {
			continue
		}
		a, _ := want.Get(f.Name)
		b, _ := got.Get(f.Name)
		if ab, ok := a.(field.Block); ok {
			if !bytes.Equal(ab, b.(field.Block)) {
				t.Errorf("%s changed", f.Name)
			}
			continue
		}
		if a != b {
			t.Errorf("%s = %v, want %v", f.Name, b, a)
		}
	}
	if bytes.Equal(want.Block(schema.FieldMemory), got.Block(schema.FieldMemory)) {
		t.Error("memory unaffected by its own pointer")
	}
}

func TestSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	m := heap.NewMarshaler(schema.Tama)

	for _, size := range []uint32{16 * 4, 18 * 4, 17*4 + 2, 0} {
		core := fakecore.New(schema.Tama)
		fill(core, 3)
		core.SetTableSize(size)
		before := append([]byte(nil), core.Bytes()...)

		st := state.New(schema.Tama)
		if err := m.Pull(ctx, core, st); !errors.Is(err, heap.ErrSchemaMismatch) {
			t.Errorf("size %d: Pull() error = %v", size, err)
		}
		if !st.Equal(state.New(schema.Tama)) {
			t.Errorf("size %d: Pull() modified state", size)
		}
		if err := m.Push(ctx, core, st); !errors.Is(err, heap.ErrSchemaMismatch) {
			t.Errorf("size %d: Push() error = %v", size, err)
		}
		if !bytes.Equal(before, core.Bytes()) {
			t.Errorf("size %d: Push() wrote memory", size)
		}
	}

	other := schema.MustNew(field.Uint8("a"))
	if err := m.Pull(ctx, fakecore.New(schema.Tama), state.New(other)); !errors.Is(err, heap.ErrSchemaMismatch) {
		t.Errorf("foreign state: Pull() error = %v", err)
	}
}

func TestOutOfBoundsPointer(t *testing.T) {
	ctx := context.Background()
	m := heap.NewMarshaler(schema.Tama)

	core := fakecore.New(schema.Tama)
	fill(core, 4)
	core.SetPointer(schema.Tama.Index(schema.FieldMemory), fakecore.MemorySize-10)
	before := append([]byte(nil), core.Bytes()...)

	st := state.New(schema.Tama)
	if err := m.Pull(ctx, core, st); !errors.Is(err, field.ErrOutOfBounds) {
		t.Errorf("Pull() error = %v, want ErrOutOfBounds", err)
	}
	if !st.Equal(state.New(schema.Tama)) {
		t.Error("failed Pull() left partial state")
	}

	st.SetUint(schema.FieldPC, 0x42)
	if err := m.Push(ctx, core, st); !errors.Is(err, field.ErrOutOfBounds) {
		t.Errorf("Push() error = %v, want ErrOutOfBounds", err)
	}
	if !bytes.Equal(before, core.Bytes()) {
		t.Error("failed Push() wrote memory")
	}
}
