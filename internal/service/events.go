package service

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
)

// OnMove records the new viewport and refreshes all vector layers.
func (s *MapSession) OnMove(ctx context.Context, bounds orb.Bound, zoom int) error {
	s.mu.Lock()
	if !s.wired {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.bounds = bounds
	if zoom > 0 {
		s.zoom = zoom
	}
	s.mu.Unlock()
	return s.RefreshAll(ctx)
}

// OnOverlayAdd handles an overlay being switched on: the layer is marked
// active, put back on the map if needed, its legend shown, and all layers
// refreshed.
func (s *MapSession) OnOverlayAdd(ctx context.Context, name string) error {
	s.mu.Lock()
	l, err := s.overlay(name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !l.onMap {
		l.onMap = true
		s.m.AddLayer(l)
	}
	if l.Legend != nil {
		s.m.AddControl(*l.Legend)
	}
	l.Active = true
	s.mu.Unlock()
	return s.RefreshAll(ctx)
}

// OnOverlayRemove handles an overlay being switched off. Loaded features
// stay on the layer.
func (s *MapSession) OnOverlayRemove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.overlay(name)
	if err != nil {
		return err
	}
	l.Active = false
	l.onMap = false
	if l.Legend != nil {
		s.m.RemoveControl(l.Legend.ID)
	}
	return nil
}

// overlay looks up a registered overlay; s.mu must be held.
func (s *MapSession) overlay(name string) (*Layer, error) {
	if !s.wired {
		return nil, ErrNotLoaded
	}
	l, ok := s.overlays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return l, nil
}
