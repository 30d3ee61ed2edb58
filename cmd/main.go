// Command kvengine is the CLI front end: it opens a store rooted at the
// current working directory and runs one of the set/get/rm subcommands.
package main

import (
	"log/slog"
	"os"

	"kvengine/internal/cli"
	"kvengine/internal/config"
	"kvengine/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(slogHandler))

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("main: failed to resolve working directory", "error", err)
		return 1
	}

	cfg, err := config.Load("kvengine.yml", ".env")
	if err != nil {
		slog.Error("main: failed to load configuration", "error", err)
		return 1
	}

	store, err := engine.Open(cwd, cfg.EngineOptions()...)
	if err != nil {
		slog.Error("main: failed to open store", "dir", cwd, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("main: error closing store", "error", err)
		}
	}()

	return cli.Run(store, os.Args[1:], os.Stdout)
}
