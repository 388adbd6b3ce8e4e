// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package imageproxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/mooncake/internal/imagecache"
	"github.com/ManuGH/mooncake/internal/metrics"
	"github.com/ManuGH/mooncake/internal/platform/httpx"
)

// ProxyPath is the daemon route serving encoded image payloads.
const ProxyPath = "/api/v1/proxy/image"

// ErrRemote is returned when the remote proxy answers with an error.
var ErrRemote = errors.New("remote image proxy error")

// Encode turns fetched bytes into the payload the image cache consumes.
func Encode(data []byte, contentType string) imagecache.Payload {
	return imagecache.Payload{
		Data:        base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
	}
}

// Local serves the image cache from an in-process Fetcher.
type Local struct {
	fetcher *Fetcher
}

func NewLocal(f *Fetcher) *Local { return &Local{fetcher: f} }

func (l *Local) Request(ctx context.Context, rawURL string) (imagecache.Payload, error) {
	data, contentType, err := l.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return imagecache.Payload{}, err
	}
	return Encode(data, contentType), nil
}

// Client serves the image cache from a remote daemon's proxy endpoint.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for the daemon at base. A nil httpClient gets
// a traced httpx client.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Timeout: DefaultTimeout + 5*time.Second, Traced: true})
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

func (c *Client) Request(ctx context.Context, rawURL string) (imagecache.Payload, error) {
	endpoint := c.base + ProxyPath + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return imagecache.Payload{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		metrics.IncUpstreamRequest("imageproxy_client", "error")
		return imagecache.Payload{}, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		metrics.IncUpstreamRequest("imageproxy_client", "status")
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(body, &problem) == nil && problem.Detail != "" {
			return imagecache.Payload{}, fmt.Errorf("%w: %d %s", ErrRemote, res.StatusCode, problem.Detail)
		}
		return imagecache.Payload{}, fmt.Errorf("%w: status %d", ErrRemote, res.StatusCode)
	}

	var p imagecache.Payload
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		metrics.IncUpstreamRequest("imageproxy_client", "decode")
		return imagecache.Payload{}, fmt.Errorf("%w: decode payload: %w", ErrRemote, err)
	}
	metrics.IncUpstreamRequest("imageproxy_client", "ok")
	return p, nil
}
