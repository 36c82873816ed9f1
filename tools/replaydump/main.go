package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/murkland/tamahost/hal"
	"github.com/murkland/tamahost/replay"
	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/wasmcore"
)

var (
	wasmPath = flag.String("wasm_path", "", "core to verify the replay against")
	romDir   = flag.String("rom_dir", "roms", "directory holding the core's rom")
)

func main() {
	flag.Parse()

	replayName := flag.Arg(0)
	f, err := os.Open(replayName)
	if err != nil {
		log.Fatalf("failed to open replay: %s", err)
	}
	defer f.Close()

	r, err := replay.Unmarshal(f, savefile.Default)
	if err != nil {
		log.Fatalf("failed to read replay: %s", err)
	}

	fmt.Fprintf(os.Stdout, "initial: %s\n", r.Initial.Registers())

	var ticks uint64
	for i, ev := range r.Events {
		switch ev := ev.(type) {
		case replay.Button:
			fmt.Fprintf(os.Stdout, "%d: tick=%d button %s pressed=%t\n", i, ticks, hal.Button(ev.Button), ev.Pressed)
		case replay.Step:
			ticks += uint64(ev.N)
			fmt.Fprintf(os.Stdout, "%d: tick=%d step %d\n", i, ticks, ev.N)
		case replay.RunFor:
			ticks += uint64(ev.Ticks)
			fmt.Fprintf(os.Stdout, "%d: tick=%d run for %dms (%d ticks)\n", i, ticks, ev.Ms, ev.Ticks)
		}
	}

	if r.Truncated {
		fmt.Fprintf(os.Stdout, "(truncated)\n")
	}

	if *wasmPath == "" {
		return
	}

	ctx := context.Background()
	wasm, err := os.ReadFile(*wasmPath)
	if err != nil {
		log.Fatalf("failed to read core: %s", err)
	}
	core, err := wasmcore.New(ctx, wasm, wasmcore.Config{RomDir: *romDir, InitFunc: "main"})
	if err != nil {
		log.Fatalf("failed to start core: %s", err)
	}
	defer core.Close(ctx)

	b := hal.New(core, schema.Tama, hal.Options{})
	if err := replay.Play(ctx, b, r, nil); err != nil {
		log.Fatalf("replay failed: %s", err)
	}
	fmt.Fprintf(os.Stdout, "verified %d events, %d ticks\n", len(r.Events), b.Ticks())
}
