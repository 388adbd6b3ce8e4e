// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manifest classifies HLS playlist documents and walks them to the
// next URI worth fetching. It performs no I/O.
//
// The walk policy is "first line wins": the first variant of a
// master playlist and the first segment of a media playlist are taken as
// representative samples. No bandwidth-aware selection is attempted.
package manifest

import (
	"bufio"
	"net/url"
	"strings"
)

// Kind is the playlist variant of a document.
type Kind string

const (
	// KindMaster lists alternative renditions (#EXT-X-STREAM-INF).
	KindMaster Kind = "master"
	// KindMedia lists segments.
	KindMedia Kind = "media"
)

const streamInfTag = "EXT-X-STREAM-INF"

// Document is a fetched playlist body together with the absolute URI it was
// fetched from. It is immutable once constructed.
type Document struct {
	body string
	base *url.URL
}

// NewDocument returns a document whose relative references resolve against
// baseURI. A nil or relative base leaves references unresolvable.
func NewDocument(body string, baseURI *url.URL) Document {
	var base *url.URL
	if baseURI != nil {
		cp := *baseURI
		base = &cp
	}
	return Document{body: body, base: base}
}

// Parse builds a document from a body and a raw base URI string.
func Parse(body, rawBase string) (Document, error) {
	base, err := url.Parse(rawBase)
	if err != nil {
		return Document{}, err
	}
	return NewDocument(body, base), nil
}

// Body returns the raw playlist text.
func (d Document) Body() string { return d.body }

// BaseURI returns a copy of the document's base URI, or nil.
func (d Document) BaseURI() *url.URL {
	if d.base == nil {
		return nil
	}
	cp := *d.base
	return &cp
}

// Reference is an absolute URI produced by resolving a playlist line against
// its document's base. The zero value is not a valid reference.
type Reference struct {
	u *url.URL
}

// URL returns a copy of the resolved URL.
func (r Reference) URL() *url.URL {
	if r.u == nil {
		return nil
	}
	cp := *r.u
	return &cp
}

// String returns the absolute URI, or "" for the zero value.
func (r Reference) String() string {
	if r.u == nil {
		return ""
	}
	return r.u.String()
}

// IsZero reports whether r holds no reference.
func (r Reference) IsZero() bool { return r.u == nil }

// Classify reports KindMaster when the document declares at least one variant
// stream, KindMedia otherwise. The tag match is case-insensitive.
func Classify(doc Document) Kind {
	scanner := bufio.NewScanner(strings.NewReader(doc.body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(strings.ToUpper(scanner.Text()), streamInfTag) {
			return KindMaster
		}
	}
	return KindMedia
}

// FirstVariant returns the first URI line of a master playlist resolved
// against the document base. ok is false when there is no URI line or it
// cannot be resolved.
func FirstVariant(doc Document) (ref Reference, ok bool) {
	return firstURI(doc)
}

// FirstSegment returns the first URI line of a media playlist resolved
// against the document base. ok is false when there is no URI line or it
// cannot be resolved.
func FirstSegment(doc Document) (ref Reference, ok bool) {
	return firstURI(doc)
}

// Next classifies doc and returns the reference a probe should follow: the
// first variant for a master playlist, the first segment otherwise.
func Next(doc Document) (Reference, Kind, bool) {
	kind := Classify(doc)
	if kind == KindMaster {
		ref, ok := FirstVariant(doc)
		return ref, kind, ok
	}
	ref, ok := FirstSegment(doc)
	return ref, kind, ok
}

func firstURI(doc Document) (Reference, bool) {
	scanner := bufio.NewScanner(strings.NewReader(doc.body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return resolve(doc.base, line)
	}
	return Reference{}, false
}

// resolve combines base and a playlist line. Only the first URI line is ever
// considered; a malformed one is not skipped in favour of a later line.
func resolve(base *url.URL, line string) (Reference, bool) {
	rel, err := url.Parse(line)
	if err != nil {
		return Reference{}, false
	}
	if rel.IsAbs() {
		if rel.Host == "" {
			return Reference{}, false
		}
		return Reference{u: rel}, true
	}
	if base == nil || !base.IsAbs() || base.Host == "" {
		return Reference{}, false
	}
	return Reference{u: base.ResolveReference(rel)}, true
}
