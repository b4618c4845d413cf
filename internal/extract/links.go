// Package extract finds household verification links in decoded email
// text.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// trailingJunk are characters that belong to the surrounding prose
// rather than the URL.
const trailingJunk = `).,;'"`

// Extractor matches a fixed set of verification-link patterns. It is
// safe for concurrent use.
type Extractor struct {
	patterns []*regexp.Regexp
}

// New compiles the given patterns. Patterns are applied in order, and
// the order determines which links are reported first.
func New(patterns []string) (*Extractor, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no link patterns configured")
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling link pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Extractor{patterns: compiled}, nil
}

// Extract returns the distinct normalized links in text, in first-seen
// order. Text without a match yields an empty slice.
func (e *Extractor) Extract(text string) []string {
	return e.NewCollector().Add(text)
}

// NewCollector returns a Collector that suppresses links already seen
// in earlier texts.
func (e *Extractor) NewCollector() *Collector {
	return &Collector{ext: e, seen: make(map[string]struct{})}
}

// Collector accumulates the links seen across several texts, e.g. every
// message scanned during one retrieval. Not safe for concurrent use.
type Collector struct {
	ext  *Extractor
	seen map[string]struct{}
}

// Add extracts the links of text that have not been returned by any
// previous call.
func (c *Collector) Add(text string) []string {
	links := []string{}
	for _, re := range c.ext.patterns {
		for _, raw := range re.FindAllString(text, -1) {
			link := Normalize(raw)
			if link == "" {
				continue
			}
			if _, ok := c.seen[link]; ok {
				continue
			}
			c.seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	return links
}

// Normalize trims whitespace, drops anything from the first '<' on, and
// strips trailing punctuation picked up from the surrounding text.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexByte(u, '<'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, trailingJunk)
}
