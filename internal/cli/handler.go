// Package cli implements the three-subcommand front end over a store
// rooted at the current working directory: set, get, and rm.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"kvengine/internal/errs"
)

// Store is the subset of engine.Store the CLI needs, kept narrow so tests
// can exercise Run against a fake.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Remove(key string) error
}

// Run parses args (excluding the program name, i.e. os.Args[1:]) and
// executes the matching subcommand against store, writing output to out.
// It returns the process exit code the caller should use.
func Run(store Store, args []string, out io.Writer) int {
	if len(args) == 0 {
		usage(out)
		return 1
	}

	switch args[0] {
	case "set":
		return runSet(store, args[1:], out)
	case "get":
		return runGet(store, args[1:], out)
	case "rm":
		return runRemove(store, args[1:], out)
	default:
		usage(out)
		return 1
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "usage: kvengine set <KEY> <VALUE> | get <KEY> | rm <KEY>")
}

func runSet(store Store, args []string, out io.Writer) int {
	if len(args) != 2 {
		usage(out)
		return 1
	}
	key, value := args[0], args[1]
	if err := store.Set(key, value); err != nil {
		slog.Error("cli: set failed", "key", key, "error", err)
		fmt.Fprintln(out, err)
		return 1
	}
	return 0
}

func runGet(store Store, args []string, out io.Writer) int {
	if len(args) != 1 {
		usage(out)
		return 1
	}
	key := args[0]
	value, ok, err := store.Get(key)
	if err != nil {
		slog.Error("cli: get failed", "key", key, "error", err)
		fmt.Fprintln(out, err)
		return 1
	}
	if !ok {
		fmt.Fprintln(out, "Key not found")
		return 0
	}
	fmt.Fprintln(out, value)
	return 0
}

func runRemove(store Store, args []string, out io.Writer) int {
	if len(args) != 1 {
		usage(out)
		return 1
	}
	key := args[0]
	err := store.Remove(key)
	switch {
	case err == nil:
		return 0
	case errs.Code(err) == errs.KeyNotFound:
		fmt.Fprintln(out, "Key not found")
		return 1
	default:
		slog.Error("cli: rm failed", "key", key, "error", err)
		fmt.Fprintln(out, err)
		return 1
	}
}
