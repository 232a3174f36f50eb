package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotLoaded is returned by event handlers before a collection has loaded.
	ErrNotLoaded = errors.New("collection not loaded")

	// ErrUnknownLayer is returned for names that are not registered overlays.
	ErrUnknownLayer = errors.New("unknown layer")
)

// Fetcher retrieves collections, features and legends from the backend.
type Fetcher interface {
	Collection(ctx context.Context, id string) (*Collection, error)
	Features(ctx context.Context, layerURL string, bounds orb.Bound) ([]*geojson.Feature, error)
	Legend(ctx context.Context, url string) (string, error)
}

// SessionConfig controls session behaviour.
type SessionConfig struct {
	// DefaultCollection is loaded when no collection id is requested.
	DefaultCollection string

	// ViewportWidth and ViewportHeight size the bounds estimate used
	// before the browser reports its viewport.
	ViewportWidth  int
	ViewportHeight int

	// RefreshConcurrency bounds simultaneous layer fetches; 0 means unbounded.
	RefreshConcurrency int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.DefaultCollection == "" {
		c.DefaultCollection = "1"
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1024
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 768
	}
	return c
}

// MapSession holds the layer registries and view state of one viewer.
type MapSession struct {
	id      string
	created time.Time
	cfg     SessionConfig
	fetch   Fetcher
	m       Map

	mu         sync.Mutex
	collection *Collection
	base       map[string]*Layer
	overlays   map[string]*Layer
	order      []string // overlay names in declaration order
	center     *orb.Point
	bounds     orb.Bound
	zoom       int
	wired      bool
}

// NewSession creates an empty session rendering to m.
func NewSession(fetch Fetcher, m Map, cfg SessionConfig) *MapSession {
	return &MapSession{
		id:       uuid.NewString(),
		created:  time.Now(),
		cfg:      cfg.withDefaults(),
		fetch:    fetch,
		m:        m,
		base:     map[string]*Layer{},
		overlays: map[string]*Layer{},
	}
}

// ID returns the session identifier.
func (s *MapSession) ID() string { return s.id }

// Load fetches a collection and rebuilds the map from it. An empty id
// loads the configured default collection. On failure the previous
// state is kept and the error is shown on the map.
func (s *MapSession) Load(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		collectionID = s.cfg.DefaultCollection
	}

	coll, err := s.fetch.Collection(ctx, collectionID)
	if err != nil {
		err = fmt.Errorf("load collection %s: %w", collectionID, err)
		s.showError(err)
		return err
	}

	var legends []string
	s.mu.Lock()
	s.collection = coll
	s.base = map[string]*Layer{}
	s.overlays = map[string]*Layer{}
	s.order = nil
	s.center = nil

	for _, desc := range coll.Layers {
		l, err := NewLayer(desc)
		if err != nil {
			log.Printf("collection %s: skipping layer: %v", collectionID, err)
			continue
		}
		if desc.Type.Overlay() {
			if _, dup := s.overlays[desc.Name]; !dup {
				s.order = append(s.order, desc.Name)
			}
			s.overlays[desc.Name] = l
			if desc.LegendURL != "" {
				legends = append(legends, desc.Name)
			}
		} else {
			s.base[desc.Name] = l
		}
		if l.Vector() && s.center == nil {
			if c, ok := l.Center(); ok {
				s.center = &c
			}
		}
		l.onMap = true
		s.m.AddLayer(l)
	}

	if coll.Properties.Name != "" {
		s.m.AddControl(Control{ID: "info", Kind: ControlInfo, Title: coll.Properties.Name})
	}
	s.m.AddControl(Control{ID: "scale", Kind: ControlScale, Imperial: false})
	s.m.AddControl(Control{
		ID:       "layers",
		Kind:     ControlLayers,
		Base:     s.baseNames(coll),
		Overlays: append([]string(nil), s.order...),
	})

	center := FallbackCenter
	if s.center != nil {
		center = *s.center
	}
	s.zoom = InitialZoom
	s.bounds = EstimateBounds(center, s.zoom, s.cfg.ViewportWidth, s.cfg.ViewportHeight)
	s.m.SetView(center, s.zoom)
	s.wired = true
	s.mu.Unlock()

	log.Printf("session %s: loaded collection %s (%q, %d layers)",
		s.id, collectionID, coll.Properties.Name, len(coll.Layers))

	// Legends and the first refresh are independent of each other.
	var g errgroup.Group
	for _, name := range legends {
		g.Go(func() error {
			s.LoadLegend(ctx, name)
			return nil
		})
	}
	g.Go(func() error { return s.RefreshAll(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}
	return nil
}

// baseNames lists base layer names in collection order, without duplicates.
func (s *MapSession) baseNames(coll *Collection) []string {
	var names []string
	seen := map[string]bool{}
	for _, d := range coll.Layers {
		if _, ok := s.base[d.Name]; ok && !seen[d.Name] && !d.Type.Overlay() {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	return names
}

func (s *MapSession) showError(err error) {
	log.Printf("session %s: %v", s.id, err)
	s.mu.Lock()
	s.m.ShowError(err.Error())
	s.mu.Unlock()
}

// Center returns the current initial-view center: the recorded vector
// layer center, or the fallback.
func (s *MapSession) Center() orb.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.center != nil {
		return *s.center
	}
	return FallbackCenter
}

// Bounds returns the viewport bounds used for refreshes.
func (s *MapSession) Bounds() orb.Bound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// LayerState summarizes one registered layer.
type LayerState struct {
	Name      string    `json:"name" doc:"Layer display name"`
	Type      LayerKind `json:"type" doc:"Layer kind"`
	Active    bool      `json:"active" doc:"Overlay toggle state"`
	OnMap     bool      `json:"onMap" doc:"Whether the layer is currently on the map"`
	Features  int       `json:"features" doc:"Features loaded so far (vector layers)"`
	HasLegend bool      `json:"hasLegend" doc:"Whether a legend control is available"`
}

// SessionState summarizes a session.
type SessionState struct {
	ID         string       `json:"id" doc:"Session ID"`
	Created    time.Time    `json:"created" doc:"Creation time"`
	Collection string       `json:"collection,omitempty" doc:"Loaded collection name"`
	Loaded     bool         `json:"loaded" doc:"Whether a collection has loaded"`
	CenterLat  float64      `json:"centerLat" doc:"Initial view latitude"`
	CenterLon  float64      `json:"centerLon" doc:"Initial view longitude"`
	BBox       string       `json:"bbox,omitempty" doc:"Current viewport bounds"`
	Base       []LayerState `json:"base" doc:"Base layers"`
	Overlays   []LayerState `json:"overlays" doc:"Overlay layers in declaration order"`
}

// State returns a snapshot of the session.
func (s *MapSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	center := FallbackCenter
	if s.center != nil {
		center = *s.center
	}
	st := SessionState{
		ID:        s.id,
		Created:   s.created,
		Loaded:    s.wired,
		CenterLat: center.Lat(),
		CenterLon: center.Lon(),
		Base:      []LayerState{},
		Overlays:  []LayerState{},
	}
	if s.collection != nil {
		st.Collection = s.collection.Properties.Name
		for _, name := range s.baseNames(s.collection) {
			st.Base = append(st.Base, layerState(s.base[name]))
		}
	}
	if s.wired {
		st.BBox = FormatBBox(s.bounds)
	}
	for _, name := range s.order {
		st.Overlays = append(st.Overlays, layerState(s.overlays[name]))
	}
	return st
}

func layerState(l *Layer) LayerState {
	return LayerState{
		Name:      l.Name(),
		Type:      l.Descriptor.Type,
		Active:    l.Active,
		OnMap:     l.onMap,
		Features:  l.LoadedCount(),
		HasLegend: l.Legend != nil,
	}
}
