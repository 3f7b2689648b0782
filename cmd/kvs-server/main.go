// Command kvs-server serves a kvs store over TCP (spec.md §4.I, §6).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/NaokiLH/kvs/internal/config"
	"github.com/NaokiLH/kvs/internal/engine"
	"github.com/NaokiLH/kvs/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kvs-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kvs-server", flag.ContinueOnError)

	addr := fs.String("addr", "", "listen address IP:PORT (default 127.0.0.1:4000)")
	engineName := fs.String("engine", "", "storage engine: kvs or sled (default kvs, or whatever the directory was initialized with)")
	workers := fs.Int("workers", 0, "worker pool size (default 4)")
	configPath := fs.String("config", "", "path to a JSONC config file")
	dir := fs.String("dir", ".", "directory kvs-server stores its log files in")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *addr != "" {
		cfg.Addr = *addr
	}

	if *engineName != "" {
		cfg.Engine = *engineName
	} else if recorded, err := os.ReadFile(filepath.Join(*dir, "engine")); err == nil {
		// Without --engine, an already initialized directory keeps the
		// engine named in its "engine" marker file.
		cfg.Engine = string(recorded)
	}

	if *workers != 0 {
		cfg.Workers = *workers
	}

	newEngine, closeAll, err := engineFactory(cfg.Engine, *dir, cfg.CompactionThresholdBytes)
	if err != nil {
		return err
	}
	defer closeAll()

	srv, err := server.New(cfg.Addr, cfg.Workers, newEngine)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh

		_ = srv.Close()
	}()

	fmt.Printf("kvs-server: listening on %s (engine=%s, workers=%d)\n", srv.Addr(), cfg.Engine, cfg.Workers)

	return srv.Serve()
}

// engineFactory returns a [server.EngineFactory] for the requested
// engine name, plus a cleanup func that closes the seed instance opened
// here to validate the engine and directory up front. The per-slot
// handles the factory hands to server.New are closed by
// [server.Server.Close], not by this cleanup.
func engineFactory(name, dir string, compactionThreshold uint64) (server.EngineFactory, func(), error) {
	switch name {
	case "kvs", "":
		seed, err := engine.OpenWithOptions(dir, engine.Options{CompactionThresholdBytes: compactionThreshold})
		if err != nil {
			return nil, nil, fmt.Errorf("kvs-server: open kvs store at %s: %w", dir, err)
		}

		return func() engine.Engine {
				return seed.Clone()
			}, func() {
				_ = seed.Close()
			}, nil

	case "sled":
		seed, err := engine.OpenSled(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("kvs-server: open sled store at %s: %w", dir, err)
		}

		return func() engine.Engine {
				return seed
			}, func() {
				_ = seed.Close()
			}, nil

	default:
		return nil, nil, fmt.Errorf("kvs-server: unknown engine %q", name)
	}
}
