package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// PayloadKind tells which shape a feature response had.
type PayloadKind int

const (
	PayloadSingle PayloadKind = iota
	PayloadList
	PayloadCollection
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadSingle:
		return "feature"
	case PayloadList:
		return "list"
	case PayloadCollection:
		return "FeatureCollection"
	}
	return fmt.Sprintf("PayloadKind(%d)", int(k))
}

// Payload is a decoded feature response: one feature, a bare list of
// features, or a FeatureCollection.
type Payload struct {
	Kind     PayloadKind
	Features []*geojson.Feature
}

// Normalize returns the features in response order.
func (p Payload) Normalize() []*geojson.Feature {
	return p.Features
}

// DecodePayload decodes a feature response body. Bare geometry objects
// are wrapped into features and null list entries are dropped.
func DecodePayload(data []byte) (Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p := Payload{Kind: PayloadList, Features: make([]*geojson.Feature, 0, len(raw))}
		for i, item := range raw {
			if isNull(item) {
				continue
			}
			f, err := decodeFeature(item)
			if err != nil {
				return Payload{}, fmt.Errorf("%w: item %d: %v", ErrMalformed, i, err)
			}
			p.Features = append(p.Features, f)
		}
		return p, nil

	case '{':
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if head.Type == "FeatureCollection" {
			fc, err := geojson.UnmarshalFeatureCollection(data)
			if err != nil {
				return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			features := make([]*geojson.Feature, 0, len(fc.Features))
			for _, f := range fc.Features {
				if f != nil {
					features = append(features, withProperties(f))
				}
			}
			return Payload{Kind: PayloadCollection, Features: features}, nil
		}
		f, err := decodeFeature(data)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Payload{Kind: PayloadSingle, Features: []*geojson.Feature{f}}, nil
	}

	return Payload{}, fmt.Errorf("%w: unexpected JSON value", ErrMalformed)
}

// decodeFeature decodes a Feature object, or a geometry object with an
// optional "properties" member, which some layer endpoints return.
func decodeFeature(data []byte) (*geojson.Feature, error) {
	var head struct {
		Type       string             `json:"type"`
		ID         any                `json:"id"`
		Properties geojson.Properties `json:"properties"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return withProperties(f), nil
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(g.Geometry())
	f.ID = head.ID
	for k, v := range head.Properties {
		f.Properties[k] = v
	}
	return f, nil
}

func withProperties(f *geojson.Feature) *geojson.Feature {
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	return f
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
