// Package fakecore is a deterministic in-process core. It lays its state
// out the way the real core does: a pointer table with one address per
// schema field, each pointing at separately placed storage.
package fakecore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/murkland/tamahost/hal"
	"github.com/murkland/tamahost/heap"
	"github.com/murkland/tamahost/schema"
)

const (
	MemorySize = 0x1000
	TableAddr  = 0x40

	lcdWidth  = 32
	lcdHeight = 16
	numIcons  = 8
)

type ButtonEvent struct {
	Button  hal.Button
	Pressed bool
	// Tick is the core's step count when the edge arrived.
	Tick uint64
}

type Core struct {
	mem       []byte
	schema    *schema.Schema
	tableSize uint32
	cb        hal.Callbacks

	steps   uint64
	buttons [hal.NumButtons]bool
	Presses []ButtonEvent
}

// New lays out storage for every field of s. Fields are placed in reverse
// schema order with a gap between them so that misaligned access is
// visible.
func New(s *schema.Schema) *Core {
	c := &Core{
		mem:       make([]byte, MemorySize),
		schema:    s,
		tableSize: uint32(s.Len() * heap.PointerSize),
	}

	addr := uint32(TableAddr) + c.tableSize + 0x10
	for i := s.Len() - 1; i >= 0; i-- {
		binary.LittleEndian.PutUint32(c.mem[TableAddr+i*heap.PointerSize:], addr)
		addr += uint32(s.At(i).Width())
		addr = (addr + 8) &^ 3
	}
	if addr > MemorySize {
		panic(fmt.Sprintf("fakecore: schema needs %d bytes", addr))
	}
	return c
}

func (c *Core) StateAddr(ctx context.Context) (uint32, error) {
	return TableAddr, nil
}

func (c *Core) StateSize(ctx context.Context) (uint32, error) {
	return c.tableSize, nil
}

func (c *Core) Memory(ctx context.Context) ([]byte, error) {
	return c.mem, nil
}

// Bytes returns the core's memory for inspection.
func (c *Core) Bytes() []byte {
	return c.mem
}

// Addr returns the storage address of the named field.
func (c *Core) Addr(name string) uint32 {
	i := c.schema.Index(name)
	if i < 0 {
		panic(fmt.Sprintf("fakecore: unknown field %s", name))
	}
	return c.Pointer(i)
}

func (c *Core) Pointer(i int) uint32 {
	return binary.LittleEndian.Uint32(c.mem[TableAddr+i*heap.PointerSize:])
}

// SetPointer overwrites pointer table entry i.
func (c *Core) SetPointer(i int, addr uint32) {
	binary.LittleEndian.PutUint32(c.mem[TableAddr+i*heap.PointerSize:], addr)
}

// SetTableSize overrides the reported pointer table size.
func (c *Core) SetTableSize(n uint32) {
	c.tableSize = n
}

func (c *Core) SetCallbacks(cb hal.Callbacks) {
	c.cb = cb
}

func (c *Core) Steps() uint64 {
	return c.steps
}

func (c *Core) Button(b hal.Button) bool {
	return c.buttons[b]
}

func (c *Core) load(name string) uint32 {
	i := c.schema.Index(name)
	if i < 0 {
		return 0
	}
	addr := c.Pointer(i)
	switch c.schema.At(i).Width() {
	case 1:
		return uint32(c.mem[addr])
	case 2:
		return uint32(binary.LittleEndian.Uint16(c.mem[addr:]))
	default:
		return binary.LittleEndian.Uint32(c.mem[addr:])
	}
}

func (c *Core) store(name string, v uint32) {
	i := c.schema.Index(name)
	if i < 0 {
		return
	}
	addr := c.Pointer(i)
	switch c.schema.At(i).Width() {
	case 1:
		c.mem[addr] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(c.mem[addr:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(c.mem[addr:], v)
	}
}

// step executes one instruction: one tick, pc+1, one pixel toggled.
func (c *Core) step(ctx context.Context) {
	tick := c.load(schema.FieldTickCounter) + 1
	c.store(schema.FieldTickCounter, tick)
	c.store(schema.FieldPC, (c.load(schema.FieldPC)+1)&0x1fff)
	c.steps++

	if c.cb == nil {
		return
	}
	px := tick % (lcdWidth * lcdHeight)
	c.cb.SetLCDMatrix(ctx, uint8(px%lcdWidth), uint8(px/lcdWidth), tick&1 == 1)
	if tick%lcdWidth == 0 {
		c.cb.SetLCDIcon(ctx, uint8(tick/lcdWidth%numIcons), tick/lcdWidth&1 == 1)
	}
}

func (c *Core) Step(ctx context.Context, n uint32) error {
	for i := uint32(0); i < n; i++ {
		c.step(ctx)
	}
	return nil
}

func (c *Core) RunFor(ctx context.Context, ms uint32) (uint32, error) {
	if ms < 1 {
		return 0, nil
	}
	target := c.load(schema.FieldTickCounter) + hal.TicksPerSecond*ms/1000
	var steps uint32
	for c.load(schema.FieldTickCounter) < target {
		c.step(ctx)
		steps++
	}
	return steps, nil
}

// PressButton beeps while any button is held.
func (c *Core) PressButton(ctx context.Context, button hal.Button, pressed bool) error {
	if button >= hal.NumButtons {
		return fmt.Errorf("fakecore: unknown button %d", button)
	}
	c.buttons[button] = pressed
	c.Presses = append(c.Presses, ButtonEvent{button, pressed, c.steps})

	if c.cb == nil {
		return nil
	}
	if pressed {
		c.cb.SetAudioFrequency(ctx, 40960 + uint32(button)*1000)
	}
	c.cb.SetAudioPlay(ctx, c.buttons[0] || c.buttons[1] || c.buttons[2])
	return nil
}
