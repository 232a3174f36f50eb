package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-map/internal/service"
)

type InfoHandler struct {
	backendURL        string
	defaultCollection string
	sessions          *service.Registry
}

func NewInfoHandler(backendURL, defaultCollection string, sessions *service.Registry) *InfoHandler {
	return &InfoHandler{backendURL: backendURL, defaultCollection: defaultCollection, sessions: sessions}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name              string   `json:"name" doc:"Service name"`
	Version           string   `json:"version" doc:"Service version"`
	Backend           string   `json:"backend" doc:"Collection backend base URL"`
	DefaultCollection string   `json:"default_collection" doc:"Collection loaded when the page names none"`
	Sessions          int      `json:"sessions" doc:"Live viewer sessions"`
	Features          []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	live := 0
	if h.sessions != nil {
		live = h.sessions.Len()
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:              "plat-map",
		Version:           "0.1.0",
		Backend:           h.backendURL,
		DefaultCollection: h.defaultCollection,
		Sessions:          live,
		Features:          []string{"collections", "viewer-sse", "sessions"},
	}}, nil
}
