package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/murkland/tamahost/config"
	"github.com/murkland/tamahost/hal"
	"github.com/murkland/tamahost/lcd"
	"github.com/murkland/tamahost/replay"
	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/schema"
	"github.com/murkland/tamahost/session"
	"github.com/murkland/tamahost/store"
	"github.com/murkland/tamahost/wasmcore"
)

var (
	logFile    = flag.String("log_file", "tamahost.log", "file to log to")
	configPath = flag.String("config_path", "tamahost.toml", "path to config")
	exportTag  = flag.String("export", "", "print the save stored under this tag and exit")
	importTag  = flag.String("import", "", "store a save read from stdin under this tag and exit")
	listSaves  = flag.Bool("list", false, "list stored save tags and exit")
)

var version string

func loadConfig(path string) config.Config {
	var conf config.Config
	confF, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("config doesn't exist, making a new one at: %s", path)
			confF, err = os.Create(path)
			if err != nil {
				log.Fatalf("failed to open config: %s", err)
			}
			defer confF.Close()
			conf = config.Default()
			if err := config.Save(conf, confF); err != nil {
				log.Fatalf("failed to save config: %s", err)
			}
		} else {
			log.Fatalf("failed to open config: %s", err)
		}
	} else {
		conf, err = config.Load(confF)
		if err != nil {
			log.Fatalf("failed to open config: %s", err)
		}
		confF.Close()
	}
	return conf
}

func openStore(conf config.Config) *store.Manager {
	dir := conf.Storage.Dir
	if dir == "" {
		dir = store.DefaultDir()
	}

	backend, err := store.NewFileBackend(afero.NewOsFs(), dir, conf.Storage.Compression == config.CompressionTypeZstd)
	if err != nil {
		log.Fatalf("failed to open save store: %s", err)
	}
	log.Printf("saves are in: %s", dir)
	return store.NewManager(backend, savefile.Default)
}

func runStoreCommand(saves *store.Manager) bool {
	switch {
	case *listSaves:
		tags, err := saves.Tags()
		if err != nil {
			log.Fatalf("failed to list saves: %s", err)
		}
		for _, tag := range tags {
			fmt.Println(tag)
		}
	case *exportTag != "":
		blob, ok, err := saves.GetState(*exportTag)
		if err != nil {
			log.Fatalf("failed to export save: %s", err)
		}
		if !ok {
			log.Fatalf("no save under tag: %s", *exportTag)
		}
		fmt.Println(blob)
	case *importTag != "":
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("failed to read save: %s", err)
		}
		if err := saves.PutBlob(string(raw), *importTag); err != nil {
			log.Fatalf("failed to import save: %s", err)
		}
		log.Printf("imported save to: %s", *importTag)
	default:
		return false
	}
	return true
}

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Fatalf("failed to open log file: %s", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Printf("welcome to tamahost %s", version)

	conf := loadConfig(*configPath)
	log.Printf("config settings: %+v", conf)

	saves := openStore(conf)
	if runStoreCommand(saves) {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wasm, err := os.ReadFile(conf.Core.WasmPath)
	if err != nil {
		log.Fatalf("failed to read core: %s", err)
	}

	core, err := wasmcore.New(ctx, wasm, wasmcore.Config{RomDir: conf.Core.RomDir, InitFunc: "main"})
	if err != nil {
		log.Fatalf("failed to start core: %s", err)
	}
	defer core.Close(context.Background())

	bridge := hal.New(core, schema.Tama, hal.Options{QueueLength: conf.Emulation.InputQueueSize})
	screen := lcd.NewScreen()
	bridge.SetSink(screen)

	if conf.Emulation.RestoreOnStart {
		st, ok, err := saves.LoadState(conf.Autosave.Tag)
		switch {
		case err != nil:
			log.Printf("failed to restore state, starting fresh: %s", err)
		case ok:
			if err := bridge.Push(ctx, st); err != nil {
				log.Fatalf("failed to restore state: %s", err)
			}
			log.Printf("restored state from: %s", conf.Autosave.Tag)
		}
	}

	if conf.Replay.Enable {
		initial, err := bridge.Pull(ctx)
		if err != nil {
			log.Fatalf("failed to snapshot state for replay: %s", err)
		}
		filename := filepath.Join(conf.Replay.Dir, time.Now().Format("20060102150405")+".tamr")
		fs := afero.NewOsFs()
		if err := fs.MkdirAll(conf.Replay.Dir, 0o700); err != nil {
			log.Fatalf("failed to create replay directory: %s", err)
		}
		rw, err := replay.Create(fs, filename, savefile.Default, initial)
		if err != nil {
			log.Fatalf("failed to create replay: %s", err)
		}
		defer rw.Close()
		bridge.SetRecorder(rw)
		log.Printf("recording replay to: %s", filename)
	}

	s := session.New(bridge, saves, session.Options{
		FrameInterval:    time.Duration(conf.Emulation.FrameIntervalMs) * time.Millisecond,
		AutosaveInterval: time.Duration(conf.Autosave.IntervalSeconds) * time.Second,
		AutosaveTag:      conf.Autosave.Tag,
		StatsInterval:    30 * time.Second,
		Keys:             conf.Keymapping.Button,
		Screen:           screen,
		Render:           os.Stdout,
	})

	if err := s.Run(ctx, os.Stdin); err != nil {
		log.Printf("session ended: %s", err)
	}
	bridge.SetRecorder(nil)
}
