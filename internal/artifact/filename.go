// Package artifact names and retrieves the files produced by completed runs.
package artifact

import (
	"net/url"
	"strings"
)

// FallbackFilename is used when a locator has no usable trailing segment
const FallbackFilename = "scraped_dealerships.csv"

// DefaultFilename derives a save name from the trailing segment of an
// artifact locator. Both slash styles are treated as separators.
func DefaultFilename(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}

	p = strings.TrimRight(strings.ReplaceAll(p, `\`, "/"), "/")

	name := p
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		name = p[idx+1:]
	}

	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return FallbackFilename
	}

	return name
}

// Locator is a parsed object storage address
type Locator struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseLocator splits scheme://bucket/key. ok is false for plain paths.
func ParseLocator(s string) (Locator, bool) {
	scheme, rest, found := strings.Cut(s, "://")
	if !found || scheme == "" {
		return Locator{}, false
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Locator{}, false
	}

	return Locator{Scheme: scheme, Bucket: bucket, Key: key}, true
}
