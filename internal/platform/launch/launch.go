// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package launch opens stream URLs in the operating system's default viewer.
package launch

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/ManuGH/mooncake/internal/log"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
)

var (
	ErrUnsupportedOS = errors.New("launch: unsupported operating system")
	ErrInvalidURL    = errors.New("launch: only absolute http(s) urls can be opened")
)

// Runner starts a detached command.
type Runner func(name string, args ...string) error

// Launcher opens URLs with the platform opener.
type Launcher struct {
	goos string
	run  Runner
}

// New returns a launcher for the running OS.
func New() *Launcher {
	return &Launcher{goos: runtime.GOOS, run: startDetached}
}

// NewWithRunner is New with an explicit GOOS and command runner.
func NewWithRunner(goos string, run Runner) *Launcher {
	return &Launcher{goos: goos, run: run}
}

// Command returns the opener command line for rawURL on goos.
func Command(goos, rawURL string) (string, []string, error) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	case "darwin":
		return "open", []string{rawURL}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	}
}

// Open starts the platform opener for rawURL without waiting for it.
func (l *Launcher) Open(rawURL string) error {
	u, ok := platformnet.ParseDirectHTTPURL(rawURL)
	if !ok {
		return ErrInvalidURL
	}
	name, args, err := Command(l.goos, u.String())
	if err != nil {
		return err
	}
	if err := l.run(name, args...); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	logger := log.WithComponent("launch")
	logger.Info().
		Str(log.FieldEvent, "launch.opened").
		Str(log.FieldURL, platformnet.SanitizeURL(rawURL)).
		Str("command", name).
		Msg("opened url in external viewer")
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 -- fixed opener binary, url validated
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
