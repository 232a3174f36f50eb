// page.go — Template data for pages that bootstrap a Datastar stream.
//
// A page carries its initial signals in data-signals and opens its SSE
// streams from data-init, so the HTML never hardcodes signal defaults.
package humastar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PageData holds what a page template needs to start Datastar.
type PageData struct {
	// Title is the document title.
	Title string

	// Signals is the JSON string for data-signals initialization.
	Signals string

	// SSEInits holds the stream URLs opened on load. The page's own query
	// string is appended to each so the stream sees the same parameters.
	SSEInits []string
}

// NewPageData builds page data from initial signals and stream URLs.
func NewPageData(title string, signals map[string]any, streams ...string) (PageData, error) {
	data, err := json.Marshal(signals)
	if err != nil {
		return PageData{}, fmt.Errorf("page signals: %w", err)
	}
	return PageData{Title: title, Signals: string(data), SSEInits: streams}, nil
}

// DataInit returns a Datastar data-init attribute value joining all SSE init URLs.
// e.g. "@get('/api/v1/viewer/stream' + window.location.search)"
func (pd PageData) DataInit() string {
	var parts []string
	for _, url := range pd.SSEInits {
		parts = append(parts, fmt.Sprintf("@get('%s' + window.location.search)", url))
	}
	return strings.Join(parts, "; ")
}
