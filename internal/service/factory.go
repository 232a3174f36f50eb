package service

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Default opacities used when a descriptor's opacity is absent or outside [0,1].
const (
	DefaultTileOpacity        = 1.0
	DefaultOverlayTileOpacity = 0.80
)

// ErrUnknownLayerType is returned for descriptors with an unrecognized type.
var ErrUnknownLayerType = errors.New("unknown layer type")

// Layer is a descriptor paired with its constructed renderable state.
type Layer struct {
	Descriptor LayerDescriptor

	// Tile is set for tile layers and nil for vector layers.
	Tile *TileOptions

	// Active is the overlay toggle state.
	Active bool

	// Legend is set once the legend markup has been fetched.
	Legend *Control

	onMap  bool
	loaded map[string]struct{}
}

// NewLayer builds the renderable layer for one descriptor.
func NewLayer(desc LayerDescriptor) (*Layer, error) {
	l := &Layer{Descriptor: desc, Active: true}
	switch desc.Type {
	case KindBaseTile:
		l.Tile = tileOptions(desc, DefaultTileOpacity)
	case KindOverlayTile:
		l.Tile = tileOptions(desc, DefaultOverlayTileOpacity)
	case KindGeoJSON:
		l.loaded = map[string]struct{}{}
	default:
		return nil, fmt.Errorf("layer %q: %w: %q", desc.Name, ErrUnknownLayerType, desc.Type)
	}
	return l, nil
}

func tileOptions(desc LayerDescriptor, defaultOpacity float64) *TileOptions {
	opacity := defaultOpacity
	if desc.Opacity != nil && *desc.Opacity >= 0 && *desc.Opacity <= 1 {
		opacity = *desc.Opacity
	}
	return &TileOptions{
		URL:         desc.LayerURL,
		TMS:         true,
		MinZoom:     desc.MinZoom,
		MaxZoom:     desc.MaxZoom,
		Attribution: desc.Attribution,
		Opacity:     opacity,
	}
}

// Name returns the layer's display name.
func (l *Layer) Name() string { return l.Descriptor.Name }

// Vector reports whether this is a GeoJSON layer.
func (l *Layer) Vector() bool { return l.Descriptor.Type == KindGeoJSON }

// Center returns the declared center when both coordinates are present.
func (l *Layer) Center() (orb.Point, bool) {
	d := l.Descriptor
	if d.CenterLat == nil || d.CenterLon == nil {
		return orb.Point{}, false
	}
	return orb.Point{*d.CenterLon, *d.CenterLat}, true
}

// Loaded reports whether a feature id has already been added.
func (l *Layer) Loaded(id string) bool {
	_, ok := l.loaded[id]
	return ok
}

// LoadedCount is the number of features added so far.
func (l *Layer) LoadedCount() int { return len(l.loaded) }

// Render applies the vector callbacks to one feature.
func (l *Layer) Render(f *geojson.Feature) RenderedFeature {
	return RenderedFeature{
		Feature: f,
		Style:   FeatureStyle(f),
		Marker:  PointMarker(f),
		Popup:   FeaturePopup(f),
	}
}

// RenderedFeature is a feature with its resolved style, marker and popup.
type RenderedFeature struct {
	Feature *geojson.Feature `json:"feature"`
	Style   Style            `json:"style"`
	Marker  *Marker          `json:"marker,omitempty"`
	Popup   string           `json:"popup,omitempty"`
}
