// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/mooncake/internal/platform/httpx"
)

// runHealthcheck exits 0 when the daemon's /healthz answers 200. Container
// images use it as their HEALTHCHECK.
func (c *cli) runHealthcheck(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mooncaked healthcheck", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "http://localhost:8088", "daemon base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := c.httpClient
	if client == nil {
		client = httpx.NewClient(*timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*addr, "/")+"/healthz", nil)
	if err != nil {
		fmt.Fprintf(c.stderr, "Healthcheck failed (request): %v\n", err)
		return 1
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(c.stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(c.stderr, "Healthcheck failed (status): %s\n", resp.Status)
		return 1
	}

	fmt.Fprintln(c.stdout, "Healthcheck successful")
	return 0
}
