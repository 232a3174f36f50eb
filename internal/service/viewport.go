package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Initial view used when no vector layer declares a center.
var FallbackCenter = orb.Point{139.69944, 35.691389}

// InitialZoom is the zoom level of the initial view.
const InitialZoom = 14

// earthCircumference is the Web Mercator world width in meters.
const earthCircumference = 2 * math.Pi * 6378137

// FormatBBox serializes bounds as "west,south,east,north".
func FormatBBox(b orb.Bound) string {
	return strings.Join([]string{
		strconv.FormatFloat(b.Min.Lon(), 'f', -1, 64),
		strconv.FormatFloat(b.Min.Lat(), 'f', -1, 64),
		strconv.FormatFloat(b.Max.Lon(), 'f', -1, 64),
		strconv.FormatFloat(b.Max.Lat(), 'f', -1, 64),
	}, ",")
}

// ParseBBox reads a "west,south,east,north" string.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want 4 comma separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// EstimateBounds approximates the bounds a width×height pixel viewport
// shows around center at zoom, using 256px Web Mercator tiles.
func EstimateBounds(center orb.Point, zoom, width, height int) orb.Bound {
	metersPerPixel := earthCircumference / (256 * math.Exp2(float64(zoom)))
	halfW := float64(width) / 2 * metersPerPixel
	halfH := float64(height) / 2 * metersPerPixel

	c := project.WGS84.ToMercator(center)
	sw := project.Mercator.ToWGS84(orb.Point{c[0] - halfW, c[1] - halfH})
	ne := project.Mercator.ToWGS84(orb.Point{c[0] + halfW, c[1] + halfH})
	return orb.Bound{Min: sw, Max: ne}
}
