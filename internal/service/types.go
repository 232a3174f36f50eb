// Package service contains the map session logic: layer construction,
// collection loading, legends, feature refresh and event handling.
package service

// LayerKind is the backend's layer "type" value.
type LayerKind string

const (
	KindBaseTile    LayerKind = "TileLayer-base"
	KindOverlayTile LayerKind = "TileLayer-overlay"
	KindGeoJSON     LayerKind = "GeoJSON"
)

// Overlay reports whether layers of this kind appear as toggleable overlays.
func (k LayerKind) Overlay() bool {
	return k == KindOverlayTile || k == KindGeoJSON
}

// Collection is a named, ordered set of layer descriptors as served by the
// collection endpoint.
type Collection struct {
	Properties CollectionProperties `json:"properties" doc:"Collection metadata"`
	Layers     []LayerDescriptor    `json:"layers" doc:"Layer descriptors in display order"`
}

// CollectionProperties is the collection metadata block.
type CollectionProperties struct {
	ID          int    `json:"id,omitempty" doc:"Collection ID" example:"1"`
	Name        string `json:"name" doc:"Collection display name" example:"Shinjuku cells"`
	Description string `json:"description,omitempty" doc:"Free text description"`
	URL         string `json:"collection-url,omitempty" doc:"Backend path of the collection"`
}

// LayerDescriptor configures one map layer. Optional numeric fields are
// pointers so an absent value can be told apart from zero.
type LayerDescriptor struct {
	Type        LayerKind `json:"type" enum:"TileLayer-base,TileLayer-overlay,GeoJSON" doc:"Layer kind"`
	Name        string    `json:"name" doc:"Display name, unique within a collection" example:"Cells"`
	LayerURL    string    `json:"layerUrl" doc:"Tile URL template or GeoJSON endpoint"`
	LegendURL   string    `json:"legendUrl,omitempty" doc:"Optional legend HTML fragment URL"`
	Opacity     *float64  `json:"opacity,omitempty" doc:"Suggested opacity (0-1)"`
	MinZoom     int       `json:"minZoom" doc:"Minimum zoom level" example:"8"`
	MaxZoom     int       `json:"maxZoom" doc:"Maximum zoom level" example:"18"`
	Attribution string    `json:"attribution" doc:"Attribution text"`
	CenterLat   *float64  `json:"centerlat,omitempty" doc:"Layer center latitude (WGS84)"`
	CenterLon   *float64  `json:"centerlon,omitempty" doc:"Layer center longitude (WGS84)"`
	Collections []int     `json:"collections,omitempty" doc:"IDs of collections including this layer"`
}

// TileOptions are the construction options of a tile layer.
type TileOptions struct {
	URL         string  `json:"url"`
	TMS         bool    `json:"tms"`
	MinZoom     int     `json:"minZoom"`
	MaxZoom     int     `json:"maxZoom"`
	Attribution string  `json:"attribution"`
	Opacity     float64 `json:"opacity"`
}

// Style is a path style passed through to the rendering library.
type Style map[string]any

// Marker renders a point feature as a circle.
type Marker struct {
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	FillOpacity float64 `json:"fillOpacity"`
	Stroke      bool    `json:"stroke"`
	Popup       string  `json:"popup,omitempty"`
}

// Label is a text label placed next to a feature.
type Label struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	HTML     string  `json:"html"`
	IconSize [2]int  `json:"iconSize"`
}

// ControlKind identifies a map control.
type ControlKind string

const (
	ControlInfo   ControlKind = "info"
	ControlScale  ControlKind = "scale"
	ControlLayers ControlKind = "layers"
	ControlLegend ControlKind = "legend"
)

// Control is a map control. Only the fields relevant to its Kind are set.
type Control struct {
	ID       string      `json:"id"`
	Kind     ControlKind `json:"kind"`
	Position string      `json:"position,omitempty"`
	Title    string      `json:"title,omitempty"`
	HTML     string      `json:"html,omitempty"`
	Base     []string    `json:"base,omitempty"`
	Overlays []string    `json:"overlays,omitempty"`
	Imperial bool        `json:"imperial"`
}
