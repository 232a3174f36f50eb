package service

import (
	"context"
	"log"
)

// LoadLegend fetches the legend markup of an overlay and stores it as a
// bottom-right legend control on the layer. Legends are cosmetic: a
// failed fetch is logged and otherwise ignored.
func (s *MapSession) LoadLegend(ctx context.Context, name string) {
	s.mu.Lock()
	l, ok := s.overlays[name]
	s.mu.Unlock()
	if !ok || l.Descriptor.LegendURL == "" {
		return
	}

	log.Printf("session %s: fetching legend for %q", s.id, name)
	html, err := s.fetch.Legend(ctx, l.Descriptor.LegendURL)
	if err != nil {
		log.Printf("session %s: legend for %q: %v", s.id, name, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The collection may have been reloaded while fetching.
	if s.overlays[name] != l {
		return
	}
	l.Legend = &Control{
		ID:       "legend-" + name,
		Kind:     ControlLegend,
		Position: "bottomright",
		HTML:     html,
	}
}
