// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/ManuGH/mooncake/internal/playback"
	"github.com/ManuGH/mooncake/internal/probe"
)

// systemSink hands HLS sources to the operating system's default player,
// which handles HLS natively.
type systemSink struct {
	launcher playback.Launcher
}

func (s *systemSink) CanPlayNative(mime string) bool {
	return mime == playback.HLSMimeType && s.launcher != nil
}

func (s *systemSink) SetSource(url string) error { return s.launcher.Open(url) }

func (s *systemSink) Play() error { return nil }
func (s *systemSink) Reset()      {}

type playOutput struct {
	MCID    string            `json:"mcId,omitempty"`
	Title   string            `json:"title,omitempty"`
	URL     string            `json:"url"`
	Probe   *probe.Result     `json:"probe,omitempty"`
	Session string            `json:"session"`
	State   playback.State    `json:"state"`
	Failure *playback.Failure `json:"failure,omitempty"`
}

// runPlay resolves a source, optionally probes it, then plays it through a
// playback session on the system sink.
func (c *cli) runPlay(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mooncaked play", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	mediaID := fs.String("id", "", "catalog media id")
	episode := fs.Int("episode", 1, "1-based episode number when --id is set")
	doProbe := fs.Bool("probe", false, "probe throughput before playing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := c.loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "Configuration error: %v\n", err)
		return 1
	}

	if *mediaID == "" && fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "Error: play takes exactly one URL or --id")
		return 2
	}
	resolved, code := c.resolveCandidates(ctx, cfg, strings.TrimSpace(*mediaID), fs.Args())
	if code != 0 {
		return code
	}
	if *episode < 1 || *episode > len(resolved.Candidates) {
		fmt.Fprintf(c.stderr, "Error: episode %d not available (%d episodes)\n", *episode, len(resolved.Candidates))
		return 2
	}
	out := playOutput{MCID: resolved.MCID, Title: resolved.Title, URL: resolved.Candidates[*episode-1]}

	if *doProbe {
		res := c.buildProber(cfg.Probe).Probe(ctx, []string{out.URL})
		out.Probe = &res
	}

	sink := &systemSink{launcher: c.launcher}
	player := playback.NewPlayer(sink, nil, playback.Options{
		MaxRecoveries: cfg.Playback.MaxRecoveries,
		Launcher:      c.launcher,
	})
	defer player.Close()

	sess, err := player.SetSource(ctx, out.URL)
	if sess != nil {
		out.Session = sess.ID()
		out.State = sess.State()
		if f, ok := sess.Failure(); ok {
			out.Failure = &f
		}
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		fmt.Fprintf(c.stderr, "Failed to encode result: %v\n", encErr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Playback failed: %v\n", err)
		return 1
	}
	return 0
}
