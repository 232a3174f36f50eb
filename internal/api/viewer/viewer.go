// Package viewer contains the Datastar SSE handlers driving the map page.
//
// A page opens one stream; the stream owns a map session for as long as
// the connection lives and forwards the session's map commands to the
// browser. Browser events come back as POSTs carrying Datastar signals.
package viewer

import (
	"context"
	"log"
	"net/http"
	"regexp"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/query"
	"github.com/joeblew999/plat-map/internal/service"
)

// CommandEvent is the DOM event carrying one map command.
const CommandEvent = "map-command"

// Fragment selectors patched by the stream.
const (
	ErrorBannerSelector = "#error-banner"
)

// Handler serves the viewer stream and event endpoints.
type Handler struct {
	humastar.Handler
	sessions *service.Registry
}

// NewHandler creates a viewer handler.
func NewHandler(sessions *service.Registry, renderer *humastar.Renderer) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "viewer-stream",
		Method:      http.MethodGet,
		Path:        "/api/v1/viewer/stream",
		Summary:     "Open a viewer stream",
		Description: "Creates a map session, loads the collection named by the page query " +
			"(collection, bbox, siteid, display-labels, display-legend) and streams map " +
			"commands as Datastar events until the client disconnects.",
		Tags: []string{"viewer"},
	}, h.OpenStream)

	for _, ev := range []struct {
		id, path, summary string
		fn                func(context.Context, *EventInput) (*huma.StreamResponse, error)
	}{
		{"viewer-move", "/api/v1/viewer/sessions/{id}/move", "Report a viewport change", h.Move},
		{"viewer-overlay-add", "/api/v1/viewer/sessions/{id}/overlayadd", "Report an overlay switched on", h.OverlayAdd},
		{"viewer-overlay-remove", "/api/v1/viewer/sessions/{id}/overlayremove", "Report an overlay switched off", h.OverlayRemove},
	} {
		huma.Register(api, huma.Operation{
			OperationID: ev.id,
			Method:      http.MethodPost,
			Path:        ev.path,
			Summary:     ev.summary,
			Tags:        []string{"viewer"},
		}, ev.fn)
	}
}

// OpenStream runs one viewer session for the lifetime of the connection.
func (h *Handler) OpenStream(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			u := humaCtx.URL()
			opts := query.ViewerOptions(query.Parse(u.RawQuery))
			reqCtx := humaCtx.Context()

			entry := h.sessions.Create()
			id := entry.Session.ID()
			defer h.sessions.Delete(id)
			log.Printf("viewer: session %s opened (collection %q)", id, opts.Collection)
			defer log.Printf("viewer: session %s closed", id)

			sse := humastar.NewSSE(humaCtx)
			sse.Signals(initialSignals(id, opts))

			go func() {
				if err := entry.Session.Load(reqCtx, opts.Collection); err != nil {
					log.Printf("viewer: session %s: %v", id, err)
				}
			}()

			for {
				select {
				case <-reqCtx.Done():
					return
				case <-entry.Outbox.Ready():
					for _, cmd := range entry.Outbox.Drain() {
						h.send(sse, cmd)
					}
				}
			}
		},
	}, nil
}

func initialSignals(id string, opts query.Options) map[string]any {
	signals := map[string]any{
		"sessionid":     id,
		"collection":    opts.Collection,
		"displaylabels": opts.DisplayLabels,
		"displaylegend": opts.DisplayLegend,
		"error":         "",
	}
	if opts.SiteID != nil {
		signals["siteid"] = *opts.SiteID
	}
	return signals
}

// WireCommand is a map command as dispatched to the page. Target is the
// DOM id of the element holding a control's markup.
type WireCommand struct {
	service.Command
	Target string `json:"target,omitempty"`
}

// send forwards one command. Control markup and errors are rendered from
// fragments and patched into the page; everything else is dispatched as a
// map-command event for the page script.
func (h *Handler) send(sse humastar.SSE, cmd service.Command) {
	switch cmd.Op {
	case service.OpError:
		msg, _ := cmd.Payload.(map[string]string)
		sse.Error(msg["message"])
		sse.Patch(h.Render("error-banner", map[string]string{"Message": msg["message"]}), ErrorBannerSelector)
		return

	case service.OpAddControl:
		c, _ := cmd.Payload.(service.Control)
		target := ControlDOMID(c.ID)
		sse.DispatchCustomEvent(CommandEvent, WireCommand{Command: cmd, Target: target})
		switch c.Kind {
		case service.ControlInfo:
			sse.Patch(h.Render("info-control", c), "#"+target)
		case service.ControlLegend:
			sse.Patch(h.Render("legend-control", c), "#"+target)
		}
		return
	}
	sse.DispatchCustomEvent(CommandEvent, WireCommand{Command: cmd})
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ControlDOMID turns a control id, which may embed a layer display name,
// into a valid DOM id.
func ControlDOMID(id string) string {
	return "control-" + unsafeID.ReplaceAllString(id, "-")
}
