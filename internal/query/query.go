// Package query reads viewer configuration from the page URL query string.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Recognized page parameters.
const (
	KeyCollection    = "collection"
	KeyBBox          = "bbox"
	KeySiteID        = "siteid"
	KeyDisplayLabels = "display-labels"
	KeyDisplayLegend = "display-legend"
)

// Parse splits a raw query (with or without the leading "?") into a
// name → value map. "+" decodes to a space and percent escapes are
// decoded; an escape that does not decode is kept as written.
// When a name repeats, the last value wins.
func Parse(raw string) map[string]string {
	params := map[string]string{}
	for _, pair := range strings.Split(strings.TrimPrefix(raw, "?"), "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		params[decode(key)] = decode(value)
	}
	return params
}

// Param returns the first value of name in raw, or "" when absent.
func Param(raw, name string) string {
	for _, pair := range strings.Split(strings.TrimPrefix(raw, "?"), "&") {
		key, value, _ := strings.Cut(pair, "=")
		if decode(key) == name {
			return decode(value)
		}
	}
	return ""
}

func decode(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// Options holds the parameters the viewer page understands.
//
// SiteID, DisplayLabels and DisplayLegend are read and handed to the page,
// but loading and refresh do not act on them.
type Options struct {
	Collection    string `json:"collection"`
	BBox          string `json:"bbox,omitempty"`
	SiteID        *int   `json:"siteid,omitempty"`
	DisplayLabels bool   `json:"displayLabels"`
	DisplayLegend bool   `json:"displayLegend"`
}

// ViewerOptions extracts Options from a parsed parameter map.
func ViewerOptions(params map[string]string) Options {
	opts := Options{
		Collection:    params[KeyCollection],
		BBox:          params[KeyBBox],
		DisplayLabels: boolParam(params, KeyDisplayLabels, true),
		DisplayLegend: boolParam(params, KeyDisplayLegend, true),
	}
	if v, ok := params[KeySiteID]; ok {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			opts.SiteID = &id
		}
	}
	return opts
}

func boolParam(params map[string]string, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
