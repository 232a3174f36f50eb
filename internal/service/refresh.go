package service

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// FeatureID returns the de-duplication id of a feature: the first truthy
// value of properties.id, properties.ID, then the GeoJSON id member.
func FeatureID(f *geojson.Feature) (string, bool) {
	for _, v := range []any{f.Properties["id"], f.Properties["ID"], f.ID} {
		if truthy(v) {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

// FeatureLabel returns the text label a feature declares through its
// label_lat, label_lon and label_text properties.
func FeatureLabel(f *geojson.Feature) (Label, bool) {
	props := f.Properties
	text, okText := props["label_text"]
	lat, okLat := coordinate(props["label_lat"])
	lon, okLon := coordinate(props["label_lon"])
	if !okText || !okLat || !okLon {
		return Label{}, false
	}
	return Label{Lat: lat, Lon: lon, HTML: fmt.Sprint(text), IconSize: [2]int{30, 0}}, true
}

func coordinate(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

// RefreshLayer fetches the features of one active vector layer inside the
// current viewport and adds the ones not seen before. It returns the
// number of features added. Inactive and non-vector layers are skipped.
func (s *MapSession) RefreshLayer(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	l, ok := s.overlays[name]
	if !ok || !l.Active || !l.Vector() {
		s.mu.Unlock()
		return 0, nil
	}
	layerURL := l.Descriptor.LayerURL
	bounds := s.bounds
	s.mu.Unlock()

	features, err := s.fetch.Features(ctx, layerURL, bounds)
	if err != nil {
		err = fmt.Errorf("refresh layer %q: %w", name, err)
		s.showError(err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlays[name] != l {
		// replaced by a collection reload
		return 0, nil
	}

	added := 0
	for _, f := range features {
		id, ok := FeatureID(f)
		if !ok {
			log.Printf("session %s: layer %q: skipping feature without id", s.id, name)
			continue
		}
		if l.Loaded(id) {
			continue
		}
		s.m.AddFeature(name, l.Render(f))
		l.loaded[id] = struct{}{}
		added++

		if label, ok := FeatureLabel(f); ok {
			s.m.AddLabel(name, label)
		}
	}
	log.Printf("session %s: layer %q: %d fetched, %d new", s.id, name, len(features), added)
	return added, nil
}

// RefreshAll refreshes every overlay. Layer fetches run independently and
// complete in any order; the first error is returned after all finish.
func (s *MapSession) RefreshAll(ctx context.Context) error {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	var g errgroup.Group
	if s.cfg.RefreshConcurrency > 0 {
		g.SetLimit(s.cfg.RefreshConcurrency)
	}
	for _, name := range names {
		g.Go(func() error {
			_, err := s.RefreshLayer(ctx, name)
			return err
		})
	}
	return g.Wait()
}
