// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command mooncaked runs the mooncake daemon and its one-shot probe and play
// tools.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/mooncake/internal/platform/launch"
	"github.com/ManuGH/mooncake/internal/playback"
	"github.com/ManuGH/mooncake/internal/version"
)

// cli carries the process surroundings so commands can be exercised in tests.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	launcher playback.Launcher
	// httpClient overrides outbound clients; nil builds hardened defaults.
	httpClient *http.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	c := &cli{stdout: os.Stdout, stderr: os.Stderr, launcher: launch.New()}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return c.runServe(ctx, nil)
	}
	switch args[0] {
	case "serve":
		return c.runServe(ctx, args[1:])
	case "probe":
		return c.runProbe(ctx, args[1:])
	case "play":
		return c.runPlay(ctx, args[1:])
	case "config":
		return c.runConfig(args[1:])
	case "healthcheck":
		return c.runHealthcheck(ctx, args[1:])
	case "version", "--version", "-version":
		fmt.Fprintln(c.stdout, version.String())
		return 0
	case "help", "-h", "--help":
		c.usage()
		return 0
	default:
		if len(args[0]) > 0 && args[0][0] == '-' {
			return c.runServe(ctx, args)
		}
		fmt.Fprintf(c.stderr, "Unknown command: %s\n\n", args[0])
		c.usage()
		return 2
	}
}

func (c *cli) usage() {
	fmt.Fprintln(c.stderr, "Usage:")
	fmt.Fprintln(c.stderr, "  mooncaked [serve] [--config config.yaml]")
	fmt.Fprintln(c.stderr, "  mooncaked probe [--config config.yaml] [--id MC_ID | URL...]")
	fmt.Fprintln(c.stderr, "  mooncaked play [--config config.yaml] [--probe] [--episode N] (--id MC_ID | URL)")
	fmt.Fprintln(c.stderr, "  mooncaked config validate|dump [--file config.yaml]")
	fmt.Fprintln(c.stderr, "  mooncaked healthcheck [--addr http://localhost:8088]")
	fmt.Fprintln(c.stderr, "  mooncaked version")
}
