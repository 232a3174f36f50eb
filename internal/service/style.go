package service

import (
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Colors used by the vector layer callbacks.
const (
	CellColor        = "#00FFFF"
	CellNoPCIColor   = "#FB8072"
	ActualPointColor = "#000000"
)

// FeatureStyle returns the path style of a vector feature: the feature's
// own "style" property when set, the fixed cell style for type "cell",
// otherwise an empty style.
func FeatureStyle(f *geojson.Feature) Style {
	props := f.Properties
	if s, ok := props["style"].(map[string]any); ok {
		return Style(s)
	}
	if props.MustString("type", "") == "cell" {
		fill := CellColor
		// Only an explicit null pci selects the debug color.
		if v, ok := props["pci"]; ok && v == nil {
			fill = CellNoPCIColor
		}
		return Style{
			"fillColor":   fill,
			"weight":      1,
			"opacity":     1,
			"color":       "gray",
			"fillOpacity": 0.7,
		}
	}
	return Style{}
}

// PointMarker returns the marker for a point feature, or nil when the
// feature is not a point.
func PointMarker(f *geojson.Feature) *Marker {
	switch f.Geometry.(type) {
	case orb.Point:
	default:
		return nil
	}

	props := f.Properties
	var m *Marker
	if props.MustString("type", "") == "actual" {
		m = &Marker{Radius: 5, Color: ActualPointColor, FillOpacity: 0.5}
	} else {
		color := ""
		if s, ok := props["style"].(map[string]any); ok {
			color, _ = s["color"].(string)
		}
		m = &Marker{Radius: 10, Color: color, FillOpacity: 0.5}
	}
	if pc, ok := props["popupContent"]; ok && truthy(pc) {
		m.Popup = fmt.Sprint(pc)
	}
	return m
}

// FeaturePopup lists every property except "style" as popup HTML,
// one div per property in key order.
func FeaturePopup(f *geojson.Feature) string {
	if len(f.Properties) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		if k != "style" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, `<div class="popup-content">%s: %s</div>`,
			template.HTMLEscapeString(k),
			template.HTMLEscapeString(propertyText(f.Properties[k])))
	}
	return b.String()
}

func propertyText(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// truthy mirrors the falsy values of JSON data: null, false, 0 and "".
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
