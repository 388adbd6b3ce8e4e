// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/mooncake/internal/catalog"
	"github.com/ManuGH/mooncake/internal/config"
	"github.com/ManuGH/mooncake/internal/probe"
)

type probeOutput struct {
	MCID       string       `json:"mcId,omitempty"`
	Title      string       `json:"title,omitempty"`
	Candidates []string     `json:"candidates"`
	Result     probe.Result `json:"result"`
}

// runProbe samples one candidate list and prints the result as JSON. The
// exit code is 1 when the probe failed.
func (c *cli) runProbe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mooncaked probe", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	mediaID := fs.String("id", "", "catalog media id whose episodes are probed")
	timeout := fs.Duration("timeout", 0, "override probe.timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := c.loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "Configuration error: %v\n", err)
		return 1
	}
	if *timeout > 0 {
		cfg.Probe.Timeout = *timeout
	}

	out, code := c.resolveCandidates(ctx, cfg, strings.TrimSpace(*mediaID), fs.Args())
	if code != 0 {
		return code
	}

	out.Result = c.buildProber(cfg.Probe).Probe(ctx, out.Candidates)

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(c.stderr, "Failed to encode result: %v\n", err)
		return 1
	}
	if out.Result.Failed {
		return 1
	}
	return 0
}

// resolveCandidates returns either the episode URLs of a catalog item or the
// positional URLs.
func (c *cli) resolveCandidates(ctx context.Context, cfg config.AppConfig, mediaID string, urls []string) (probeOutput, int) {
	switch {
	case mediaID != "" && len(urls) > 0:
		fmt.Fprintln(c.stderr, "Error: pass either --id or URLs, not both")
		return probeOutput{}, 2
	case mediaID != "":
		lookupCtx, cancel := context.WithTimeout(ctx, cfg.Catalog.Timeout+time.Second)
		defer cancel()
		m, err := c.buildCatalog(cfg.Catalog).Item(lookupCtx, mediaID)
		if err != nil {
			fmt.Fprintf(c.stderr, "Catalog lookup failed: %v\n", err)
			return probeOutput{}, 1
		}
		return mediaOutput(m), 0
	case len(urls) == 0:
		fmt.Fprintln(c.stderr, "Error: --id or at least one URL is required")
		return probeOutput{}, 2
	default:
		return probeOutput{Candidates: urls}, 0
	}
}

func mediaOutput(m catalog.Media) probeOutput {
	return probeOutput{MCID: m.MCID, Title: m.Title, Candidates: m.CandidateURLs()}
}
