package schema

import "github.com/murkland/tamahost/field"

const (
	FieldPC                 = "pc"
	FieldX                  = "x"
	FieldY                  = "y"
	FieldA                  = "a"
	FieldB                  = "b"
	FieldNP                 = "np"
	FieldSP                 = "sp"
	FieldFlags              = "flags"
	FieldTickCounter        = "tick_counter"
	FieldClkTimerTimestamp  = "clk_timer_timestamp"
	FieldProgTimerTimestamp = "prog_timer_timestamp"
	FieldProgTimerEnabled   = "prog_timer_enabled"
	FieldProgTimerData      = "prog_timer_data"
	FieldProgTimerRld       = "prog_timer_rld"
	FieldCallDepth          = "call_depth"
	FieldInterrupts         = "interrupts"
	FieldMemory             = "memory"
)

const (
	InterruptsSize = 24
	MemorySize     = 464
)

// Tama matches the field order of the core's state_t pointer table. Do not
// reorder: every field would silently land in the wrong slot.
var Tama = MustNew(
	field.Uint16(FieldPC),
	field.Uint16(FieldX),
	field.Uint16(FieldY),
	field.Uint8(FieldA),
	field.Uint8(FieldB),
	field.Uint8(FieldNP),
	field.Uint8(FieldSP),
	field.Uint8(FieldFlags),
	field.Uint32(FieldTickCounter),
	field.Uint32(FieldClkTimerTimestamp),
	field.Uint32(FieldProgTimerTimestamp),
	field.Uint8(FieldProgTimerEnabled),
	field.Uint8(FieldProgTimerData),
	field.Uint8(FieldProgTimerRld),
	field.Uint32(FieldCallDepth),
	field.Bytes(FieldInterrupts, InterruptsSize),
	field.Bytes(FieldMemory, MemorySize),
)
