package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/roelfdiedericks/wavi/internal/ai"
	"github.com/roelfdiedericks/wavi/internal/config"
	"github.com/roelfdiedericks/wavi/internal/modes"
	"github.com/roelfdiedericks/wavi/internal/mux"
	"github.com/roelfdiedericks/wavi/internal/paths"
	"github.com/roelfdiedericks/wavi/internal/reducer"
	"github.com/roelfdiedericks/wavi/internal/render"
	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/term"
	"github.com/roelfdiedericks/wavi/internal/types"
	"github.com/roelfdiedericks/wavi/internal/whatsapp"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("wavi %s\n", version)
			return
		case "link":
			runLink()
			return
		case "unlink":
			runUnlink()
			return
		case "help", "-h", "--help":
			usage()
			return
		}
	}
	runClient(os.Args[1:])
}

func usage() {
	fmt.Println("wavi - vim-style WhatsApp terminal client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  wavi [flags]     run the client")
	fmt.Println("  wavi link        pair a new WhatsApp device (QR)")
	fmt.Println("  wavi unlink      remove the stored session")
	fmt.Println("  wavi version     print version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -debug           debug logging")
	fmt.Println("  -data DIR        data directory (default ~/.wavi)")
}

// runLink pairs a device; logs go to stderr since no TUI is running.
func runLink() {
	Init(&Config{Level: LevelWarn, ShowCaller: false})
	if err := paths.EnsureBaseDir(); err != nil {
		L_fatal("failed to create data dir: %v", err)
	}
	if err := whatsapp.LinkDevice(); err != nil {
		fmt.Fprintf(os.Stderr, "link failed: %v\n", err)
		os.Exit(1)
	}
}

func runUnlink() {
	Init(&Config{Level: LevelWarn, ShowCaller: false})
	if err := whatsapp.UnlinkDevice(); err != nil {
		fmt.Fprintf(os.Stderr, "unlink failed: %v\n", err)
		os.Exit(1)
	}
}

func runClient(args []string) {
	fs := flag.NewFlagSet("wavi", flag.ExitOnError)
	debug := fs.Bool("debug", false, "debug logging")
	dataDir := fs.String("data", "", "data directory (default ~/.wavi)")
	_ = fs.Parse(args)

	if *dataDir != "" {
		paths.SetBaseDir(*dataDir)
	}
	if err := paths.EnsureBaseDir(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the renderer, so logs go to a file.
	logPath, _ := paths.LogPath()
	level := LevelInfo
	if *debug {
		level = LevelDebug
	}
	Init(&Config{Level: level, ShowCaller: true, FilePath: logPath})
	defer Close()

	L_info("wavi %s starting", version)

	cfg, err := config.Load()
	if err != nil {
		L_error("failed to load config", "error", err)
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Core
	m := mux.New(cfg.Core.UpdateBuffer, cfg.Core.KeyBuffer)
	st := state.New()
	eng := modes.NewEngine(cfg.Core.PendingKeyTimeout())

	// Update adapter. Built before the screen so a missing pairing is
	// reported on a usable terminal.
	wa, err := whatsapp.New(m.PushUpdate)
	if err != nil {
		L_error("whatsapp adapter failed", "error", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// The assistant may be nil (disabled); a typed nil must not become
	// a non-nil Drafter interface.
	var drafter reducer.Drafter
	if assistant := ai.New(cfg.AI, m.PushUpdate); assistant != nil {
		drafter = assistant
		L_info("ai: reply drafting enabled", "model", cfg.AI.Model)
	}

	scr, err := term.New()
	if err != nil {
		L_error("terminal init failed", "error", err)
		fmt.Fprintf(os.Stderr, "terminal init failed: %v\n", err)
		os.Exit(1)
	}

	red := reducer.New(wa, drafter)
	sched := render.NewScheduler(scr, cfg.Core.FrameMinInterval())
	loop := reducer.NewLoop(m, eng, red, st, sched)

	// Producers
	tickerStop := make(chan struct{})
	go term.RunTicker(tickerStop, cfg.Core.TickInterval(), m.PushTick)
	go scr.PollKeys(
		func(k types.KeyEvent) error { return m.PushKey(k) },
		func() { m.PushTick(time.Now()) },
	)

	if err := wa.Start(); err != nil {
		scr.Close()
		L_error("whatsapp connect failed", "error", err)
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}

	// The loop blocks until a Quit action has been fully processed.
	loop.Run()

	// Cooperative shutdown: stop producers, give the adapter its grace
	// window, then restore the terminal no matter what.
	close(tickerStop)
	done := make(chan struct{})
	go func() {
		wa.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Core.ShutdownGrace()):
		L_warn("shutdown grace expired, exiting anyway")
	}
	scr.Close()

	stats := m.Stats()
	L_info("wavi exiting", "updatesBlocked", stats.UpdatesBlocked,
		"keysBlocked", stats.KeysBlocked, "ticksDropped", stats.TicksDropped)
}
