// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/random", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":{"items":[
			{"mc_id":"r1","title":"One","m3u8_urls":"{\"ep1\":\"https://s/r1.m3u8\"}"},
			{"mc_id":"r2","title":"","m3u8_urls":"garbage"},
			"not an object"
		]}}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "moon cake" {
			_, _ = w.Write([]byte(`{"code":200,"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":[{"mc_id":"s1","title":"Moon","m3u8_urls":{"a":"https://s/a.m3u8","b":"https://s/b.m3u8"}}]}`))
	})
	mux.HandleFunc("/item-1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"mc_id":"item-1","title":"Item","year":1999,"m3u8_urls":"{\"x\":\"https://s/x.m3u8\"}"}}`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":404,"message":"not found","data":null}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL+"/", srv.Client()).WithLogger(zerolog.Nop())
}

func TestClient_Random(t *testing.T) {
	items, err := newTestClient(newBackend(t)).Random(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "r1", items[0].MCID)
	assert.Equal(t, []string{"https://s/r1.m3u8"}, items[0].CandidateURLs())
	assert.Equal(t, UnknownTitle, items[1].Title)
	assert.Empty(t, items[1].Episodes)
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(newBackend(t))

	items, err := c.Search(context.Background(), " moon cake ")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"https://s/a.m3u8", "https://s/b.m3u8"}, items[0].CandidateURLs())

	none, err := c.Search(context.Background(), "other")
	require.NoError(t, err)
	assert.Empty(t, none)

	blank, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, blank)
}

func TestClient_Item(t *testing.T) {
	c := newTestClient(newBackend(t))

	m, err := c.Item(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Item", m.Title)
	assert.Equal(t, "1999", m.Year)
	assert.Equal(t, []string{"https://s/x.m3u8"}, m.CandidateURLs())

	_, err = c.Item(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(newBackend(t))

	_, err := c.Item(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrUpstream)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not found", apiErr.Message)

	_, err = c.Item(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = New("http://127.0.0.1:1", nil).WithLogger(zerolog.Nop()).Random(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}
