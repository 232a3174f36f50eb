package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/service"
)

// EventInput is a browser event for one session, carrying Datastar signals.
type EventInput struct {
	ID      string `path:"id" doc:"Viewer session ID"`
	RawBody []byte
}

func (i *EventInput) signals() (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: i.RawBody}
	return in.MustParse()
}

// Move handles a viewport change: signals bbox ("west,south,east,north")
// and optionally zoom.
func (h *Handler) Move(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	entry, signals, err := h.event(input)
	if err != nil {
		return nil, err
	}
	bounds, err := service.ParseBBox(signals.String("bbox"))
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	err = entry.Session.OnMove(context.WithoutCancel(ctx), bounds, signals.Int("zoom"))
	return h.reply(err)
}

// OverlayAdd handles an overlay switched on: signal overlay.
func (h *Handler) OverlayAdd(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	entry, signals, err := h.event(input)
	if err != nil {
		return nil, err
	}
	name, err := overlayName(signals)
	if err != nil {
		return nil, err
	}
	return h.reply(entry.Session.OnOverlayAdd(context.WithoutCancel(ctx), name))
}

// OverlayRemove handles an overlay switched off: signal overlay.
func (h *Handler) OverlayRemove(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	entry, signals, err := h.event(input)
	if err != nil {
		return nil, err
	}
	name, err := overlayName(signals)
	if err != nil {
		return nil, err
	}
	return h.reply(entry.Session.OnOverlayRemove(name))
}

func (h *Handler) event(input *EventInput) (service.SessionEntry, humastar.Signals, error) {
	entry, ok := h.sessions.Get(input.ID)
	if !ok {
		return service.SessionEntry{}, nil, huma.Error404NotFound("session not found")
	}
	signals, err := input.signals()
	if err != nil {
		return service.SessionEntry{}, nil, err
	}
	return entry, signals, nil
}

func overlayName(signals humastar.Signals) (string, error) {
	name := signals.String("overlay")
	if name == "" {
		return "", huma.Error400BadRequest("overlay is required")
	}
	return name, nil
}

// reply maps an event result to a response. Event errors before the
// collection loaded or for unknown overlays are client errors; refresh
// failures have already been shown on the map and are echoed as the
// error signal.
func (h *Handler) reply(err error) (*huma.StreamResponse, error) {
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		return nil, huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrUnknownLayer):
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{"error": ""})
	}), nil
}
