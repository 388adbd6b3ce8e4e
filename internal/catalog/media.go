// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UnknownTitle replaces empty titles.
const UnknownTitle = "Unknown"

// Episode is one label -> stream URL pair of a media record.
type Episode struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Media is a catalog record with its episodes in backend order.
type Media struct {
	MCID     string    `json:"mcId"`
	Title    string    `json:"title"`
	Poster   string    `json:"poster,omitempty"`
	Year     string    `json:"year,omitempty"`
	Rating   float64   `json:"rating,omitempty"`
	Region   string    `json:"region,omitempty"`
	Category string    `json:"category,omitempty"`
	Episodes []Episode `json:"episodes"`
}

// CandidateURLs returns the episode URLs in order.
func (m Media) CandidateURLs() []string {
	urls := make([]string, 0, len(m.Episodes))
	for _, ep := range m.Episodes {
		urls = append(urls, ep.URL)
	}
	return urls
}

// record is the backend's wire shape.
type record struct {
	MCID       string          `json:"mc_id"`
	Title      string          `json:"title"`
	CoverImage string          `json:"cover_image"`
	Year       flexString      `json:"year"`
	Rating     flexFloat       `json:"rating"`
	Region     string          `json:"region"`
	Category   string          `json:"category"`
	M3U8URLs   json.RawMessage `json:"m3u8_urls"`
}

func (r record) media() Media {
	title := strings.TrimSpace(norm.NFC.String(r.Title))
	if title == "" {
		title = UnknownTitle
	}
	return Media{
		MCID:     r.MCID,
		Title:    title,
		Poster:   r.CoverImage,
		Year:     string(r.Year),
		Rating:   float64(r.Rating),
		Region:   norm.NFC.String(r.Region),
		Category: norm.NFC.String(r.Category),
		Episodes: DecodeEpisodes(r.M3U8URLs),
	}
}

// DecodeEpisodes reads the episode map, which the backend sends either as an
// object or as a JSON string holding one. Key order is preserved. Entries
// whose value is not a non-empty string are skipped; anything else that is
// malformed yields an empty slice.
func DecodeEpisodes(raw json.RawMessage) []Episode {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Episode{}
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return []Episode{}
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return []Episode{}
	}

	episodes, ok := decodeOrdered(raw)
	if !ok {
		return []Episode{}
	}
	return episodes
}

func decodeOrdered(raw []byte) ([]Episode, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	episodes := []Episode{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		label, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		var url string
		if json.Unmarshal(value, &url) != nil || strings.TrimSpace(url) == "" {
			continue
		}
		episodes = append(episodes, Episode{Label: norm.NFC.String(label), URL: strings.TrimSpace(url)})
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, false
	}
	if _, err := dec.Token(); err == nil {
		// trailing data after the object
		return nil, false
	}
	return episodes, true
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = flexString(n.String())
		return nil
	}
	*s = ""
	return nil
}

// flexFloat accepts a JSON number or a numeric string; anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*f = flexFloat(v)
			return nil
		}
	}
	*f = 0
	return nil
}
