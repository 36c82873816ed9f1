package state

import (
	"fmt"

	"github.com/murkland/tamahost/schema"
)

// Flags is the CPU flags register.
type Flags uint8

const (
	FlagCarry Flags = 1 << iota
	FlagZero
	FlagDecimal
	FlagInterrupt
)

func (f Flags) Carry() bool     { return f&FlagCarry != 0 }
func (f Flags) Zero() bool      { return f&FlagZero != 0 }
func (f Flags) Decimal() bool   { return f&FlagDecimal != 0 }
func (f Flags) Interrupt() bool { return f&FlagInterrupt != 0 }

func (f Flags) String() string {
	bit := func(b bool, c byte) byte {
		if b {
			return c
		}
		return '-'
	}
	return string([]byte{
		bit(f.Carry(), 'C'),
		bit(f.Zero(), 'Z'),
		bit(f.Decimal(), 'D'),
		bit(f.Interrupt(), 'I'),
	})
}

// Registers is the register file of a state built on schema.Tama.
type Registers struct {
	PC, X, Y     uint16
	A, B, NP, SP uint8
	Flags        Flags
}

func (st *State) Registers() Registers {
	return Registers{
		PC:    uint16(st.Uint(schema.FieldPC)),
		X:     uint16(st.Uint(schema.FieldX)),
		Y:     uint16(st.Uint(schema.FieldY)),
		A:     uint8(st.Uint(schema.FieldA)),
		B:     uint8(st.Uint(schema.FieldB)),
		NP:    uint8(st.Uint(schema.FieldNP)),
		SP:    uint8(st.Uint(schema.FieldSP)),
		Flags: Flags(st.Uint(schema.FieldFlags)),
	}
}

func (r Registers) String() string {
	return fmt.Sprintf("pc=0x%04x np=0x%02x sp=0x%02x x=0x%04x y=0x%04x a=0x%x b=0x%x flags=%s", r.PC, r.NP, r.SP, r.X, r.Y, r.A, r.B, r.Flags)
}
