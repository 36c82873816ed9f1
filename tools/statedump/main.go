package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/state"
)

var (
	prevPath = flag.String("prev", "", "save to diff memory against")
	width    = flag.Int("width", 16, "bytes per memory row")
)

func readState(path string) (*state.State, error) {
	var raw []byte
	var err error
	if path == "" || path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return savefile.Default.Import(string(raw))
}

// dumpMemory writes one row per width bytes. Bytes that differ from prev
// are bracketed.
func dumpMemory(w io.Writer, mem []byte, prev []byte, width int) {
	for off := 0; off < len(mem); off += width {
		end := off + width
		if end > len(mem) {
			end = len(mem)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%03x:", off)
		for i := off; i < end; i++ {
			if prev != nil && prev[i] != mem[i] {
				fmt.Fprintf(&sb, "[%02x]", mem[i])
			} else {
				fmt.Fprintf(&sb, " %02x ", mem[i])
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

func main() {
	flag.Parse()

	st, err := readState(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read state: %s", err)
	}

	var prev []byte
	if *prevPath != "" {
		prevSt, err := readState(*prevPath)
		if err != nil {
			log.Fatalf("failed to read previous state: %s", err)
		}
		prev = prevSt.Block(schema.FieldMemory)
	}

	regs := st.Registers()
	fmt.Fprintf(os.Stdout, "%s\n", regs)
	fmt.Fprintf(os.Stdout, "flags: %s (carry=%t zero=%t decimal=%t interrupt=%t)\n", regs.Flags, regs.Flags.Carry(), regs.Flags.Zero(), regs.Flags.Decimal(), regs.Flags.Interrupt())
	fmt.Fprintf(os.Stdout, "tick_counter=%d clk_timer_timestamp=%d call_depth=%d\n",
		st.Uint(schema.FieldTickCounter), st.Uint(schema.FieldClkTimerTimestamp), st.Uint(schema.FieldCallDepth))
	fmt.Fprintf(os.Stdout, "prog_timer: enabled=%d data=%02x rld=%02x timestamp=%d\n",
		st.Uint(schema.FieldProgTimerEnabled), st.Uint(schema.FieldProgTimerData), st.Uint(schema.FieldProgTimerRld), st.Uint(schema.FieldProgTimerTimestamp))
	fmt.Fprintf(os.Stdout, "interrupts: % x\n", st.Block(schema.FieldInterrupts))

	var buf bytes.Buffer
	dumpMemory(&buf, st.Block(schema.FieldMemory), prev, *width)
	os.Stdout.Write(buf.Bytes())
}
