// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package catalog talks to the media catalog backend.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/metrics"
	"github.com/ManuGH/mooncake/internal/platform/httpx"
	"github.com/ManuGH/mooncake/internal/telemetry"
)

const (
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 8 << 20
	tracerName       = "github.com/ManuGH/mooncake/internal/catalog"
)

var (
	// ErrUpstream wraps every failure talking to the backend.
	ErrUpstream = errors.New("catalog upstream error")
	// ErrNotFound is returned when the backend reports code 404.
	ErrNotFound = errors.New("media not found")
	ErrEmptyID  = errors.New("media id is empty")
)

// APIError is a non-200 envelope code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: code %d", e.Code)
	}
	return fmt.Sprintf("catalog: code %d: %s", e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client queries the catalog backend.
type Client struct {
	base   string
	http   *http.Client
	logger zerolog.Logger
}

// New returns a Client for base. A nil httpClient gets a traced httpx client.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Timeout: DefaultTimeout, Traced: true})
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   httpClient,
		logger: log.WithComponent("catalog"),
	}
}

// WithLogger returns a copy of c logging to l.
func (c *Client) WithLogger(l zerolog.Logger) *Client {
	cp := *c
	cp.logger = l
	return &cp
}

func (c *Client) Search(ctx context.Context, query string) ([]Media, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []Media{}, nil
	}
	data, err := c.get(ctx, "search", "", "/search?q="+url.QueryEscape(q))
	if err != nil {
		return nil, err
	}
	return decodeList(data)
}

func (c *Client) Random(ctx context.Context) ([]Media, error) {
	data, err := c.get(ctx, "random", "", "/random")
	if err != nil {
		return nil, err
	}
	return decodeList(data)
}

func (c *Client) Item(ctx context.Context, id string) (Media, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Media{}, ErrEmptyID
	}
	data, err := c.get(ctx, "item", id, "/"+url.PathEscape(id))
	if err != nil {
		return Media{}, err
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Media{}, fmt.Errorf("%w: decode item: %w", ErrUpstream, err)
	}
	if r.MCID == "" {
		r.MCID = id
	}
	return r.media(), nil
}

func (c *Client) get(ctx context.Context, op, mediaID, path string) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "catalog."+op, telemetry.CatalogAttributes(op, mediaID, 0)...)
	data, err := c.do(ctx, path)
	telemetry.EndSpan(span, err)

	result := "ok"
	if err != nil {
		result = "error"
		c.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "catalog.failed").
			Str("operation", op).
			Str(log.FieldMediaID, mediaID).
			Msg("catalog request failed")
	}
	metrics.IncUpstreamRequest("catalog", result)
	return data, err
}

func (c *Client) do(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, &APIError{Code: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrUpstream, err)
	}
	if env.Code != http.StatusOK {
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// decodeList accepts {items: [...]} or a bare array. Records that fail to
// decode are dropped.
func decodeList(data json.RawMessage) ([]Media, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Media{}, nil
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: decode list: %w", ErrUpstream, err)
		}
	} else {
		var wrapped struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: decode list: %w", ErrUpstream, err)
		}
		items = wrapped.Items
	}

	out := make([]Media, 0, len(items))
	for _, raw := range items {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		out = append(out, r.media())
	}
	return out, nil
}
