// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manifest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body, base string) Document {
	t.Helper()
	doc, err := Parse(body, base)
	require.NoError(t, err)
	return doc
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{name: "master", body: "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nv.m3u8\n", want: KindMaster},
		{name: "master lowercase tag", body: "#EXTM3U\n#ext-x-stream-inf:BANDWIDTH=100\nv.m3u8\n", want: KindMaster},
		{name: "media", body: "#EXTM3U\n#EXTINF:10,\nseg1.ts\n", want: KindMedia},
		{name: "empty", body: "", want: KindMedia},
		{name: "crlf master", body: "#EXTM3U\r\n#EXT-X-STREAM-INF:BANDWIDTH=1\r\nv.m3u8\r\n", want: KindMaster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.body, "https://h/x.m3u8")
			if got := Classify(doc); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFirstVariant_MasterScenario(t *testing.T) {
	doc := mustParse(t, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nvariant.m3u8\n", "https://h/master.m3u8")
	ref, ok := FirstVariant(doc)
	require.True(t, ok)
	assert.Equal(t, "https://h/variant.m3u8", ref.String())
}

func TestFirstSegment_MediaScenario(t *testing.T) {
	doc := mustParse(t, "#EXTM3U\nseg1.ts\n", "https://h/media.m3u8")
	ref, ok := FirstSegment(doc)
	require.True(t, ok)
	assert.Equal(t, "https://h/seg1.ts", ref.String())
}

func TestFirstURI_Resolution(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		base   string
		want   string
		wantOK bool
	}{
		{name: "absolute line", body: "#EXTM3U\nhttps://cdn/a.ts\n", base: "https://h/p/m.m3u8", want: "https://cdn/a.ts", wantOK: true},
		{name: "root relative", body: "/x/a.ts", base: "https://h/p/m.m3u8", want: "https://h/x/a.ts", wantOK: true},
		{name: "dot segments", body: "../b/a.ts", base: "https://h/p/q/m.m3u8", want: "https://h/p/b/a.ts", wantOK: true},
		{name: "query kept", body: "a.ts?token=1", base: "https://h/p/m.m3u8?sig=2", want: "https://h/p/a.ts?token=1", wantOK: true},
		{name: "blank and tags skipped", body: "\n  \n#EXTINF:4,\n  seg.ts  \nseg2.ts", base: "https://h/m.m3u8", want: "https://h/seg.ts", wantOK: true},
		{name: "first line wins", body: "one.ts\ntwo.ts", base: "https://h/m.m3u8", want: "https://h/one.ts", wantOK: true},
		{name: "no uri lines", body: "#EXTM3U\n#EXT-X-ENDLIST\n", base: "https://h/m.m3u8", wantOK: false},
		{name: "malformed line", body: "http://[::1\nok.ts", base: "https://h/m.m3u8", wantOK: false},
		{name: "relative base", body: "a.ts", base: "m.m3u8", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.body, tt.base)
			ref, ok := FirstSegment(doc)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (ref=%q)", ok, tt.wantOK, ref.String())
			}
			if !ok {
				assert.True(t, ref.IsZero())
				return
			}
			if diff := cmp.Diff(tt.want, ref.String()); diff != "" {
				t.Errorf("resolved mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMasterRoundTrip_MatchesDirectMedia(t *testing.T) {
	master := mustParse(t, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow/index.m3u8\n", "https://h/show/master.m3u8")
	variant, ok := FirstVariant(master)
	require.True(t, ok)

	mediaBody := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\nseg-0001.ts\n"
	viaMaster, ok := FirstSegment(NewDocument(mediaBody, variant.URL()))
	require.True(t, ok)

	direct, ok := FirstSegment(mustParse(t, mediaBody, "https://h/show/low/index.m3u8"))
	require.True(t, ok)

	assert.Equal(t, direct.String(), viaMaster.String())
	assert.Equal(t, "https://h/show/low/seg-0001.ts", viaMaster.String())
}

func TestNext(t *testing.T) {
	ref, kind, ok := Next(mustParse(t, "#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8", "https://h/m.m3u8"))
	require.True(t, ok)
	assert.Equal(t, KindMaster, kind)
	assert.Equal(t, "https://h/v.m3u8", ref.String())

	_, kind, ok = Next(mustParse(t, "#EXTM3U\n", "https://h/m.m3u8"))
	assert.False(t, ok)
	assert.Equal(t, KindMedia, kind)
}

func TestDocument_IsImmutable(t *testing.T) {
	doc := mustParse(t, "a.ts", "https://h/p/m.m3u8")
	base := doc.BaseURI()
	base.Host = "evil"
	ref, ok := FirstSegment(doc)
	require.True(t, ok)
	assert.Equal(t, "https://h/p/a.ts", ref.String())
}
