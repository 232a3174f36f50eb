// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-map/internal/backend"
	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/service"
)

// CollectionSource lists and fetches collections from the backend.
type CollectionSource interface {
	Collections(ctx context.Context) ([]service.Collection, error)
	Collection(ctx context.Context, id string) (*service.Collection, error)
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions    *service.Registry
	Collections CollectionSource
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Resource ID" example:"1"`
}

type CollectionOutput struct {
	Body service.Collection
}

type CollectionsOutput struct {
	Body []service.Collection
}

type ListSessionsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

type SessionsOutput struct {
	Body humastar.PageBody[service.SessionState]
}

// SessionBody is one session with its state-dependent actions.
type SessionBody struct {
	service.SessionState
}

var sessionActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "Close session"},
	{Rel: "move", Pattern: "/api/v1/viewer/sessions/%s/move", Method: "POST", Title: "Report viewport"},
	{Rel: "overlayadd", Pattern: "/api/v1/viewer/sessions/%s/overlayadd", Method: "POST", Title: "Switch overlay on"},
	{Rel: "overlayremove", Pattern: "/api/v1/viewer/sessions/%s/overlayremove", Method: "POST", Title: "Switch overlay off"},
}

// Actions implements humastar.Actor. Event actions are offered once the
// collection has loaded.
func (b SessionBody) Actions() []humastar.Action {
	defs := sessionActions[:1]
	if b.Loaded {
		defs = sessionActions
	}
	return humastar.ActionsFor(b.ID, defs)
}

type SessionOutput struct {
	Body SessionBody
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers the REST routes backed by svc.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCollections registers the backend collection routes.
func (h *APIHandler) RegisterCollections(api huma.API) {
	huma.Get(api, "/api/v1/collections", h.GetCollections, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}", h.GetCollection, huma.OperationTags("collections"))
}

// RegisterSessions registers viewer session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.GetSessions, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetCollections(ctx context.Context, input *struct{}) (*CollectionsOutput, error) {
	if h.svc == nil || h.svc.Collections == nil {
		return nil, huma.Error503ServiceUnavailable("backend not configured")
	}
	colls, err := h.svc.Collections.Collections(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	if colls == nil {
		colls = []service.Collection{}
	}
	return &CollectionsOutput{Body: colls}, nil
}

func (h *APIHandler) GetCollection(ctx context.Context, input *IDInput) (*CollectionOutput, error) {
	if h.svc == nil || h.svc.Collections == nil {
		return nil, huma.Error503ServiceUnavailable("backend not configured")
	}
	coll, err := h.svc.Collections.Collection(ctx, input.ID)
	if err != nil {
		return nil, backendError(err)
	}
	return &CollectionOutput{Body: *coll}, nil
}

// backendError maps a backend failure to a gateway error, keeping 404s.
func backendError(err error) error {
	if backend.IsNotFound(err) {
		return huma.Error404NotFound("collection not found")
	}
	if errors.Is(err, backend.ErrMalformed) {
		return huma.Error502BadGateway("backend returned a malformed response", err)
	}
	return huma.Error502BadGateway("backend request failed", err)
}

func (h *APIHandler) GetSessions(ctx context.Context, input *ListSessionsInput) (*SessionsOutput, error) {
	page := humastar.PageBody[service.SessionState]{
		Offset: input.Offset,
		Limit:  input.Limit,
		Data:   []service.SessionState{},
	}
	if h.svc == nil || h.svc.Sessions == nil {
		return &SessionsOutput{Body: page}, nil
	}
	all := h.svc.Sessions.List()
	page.Total = len(all)
	for i := input.Offset; i < len(all) && i < input.Offset+input.Limit; i++ {
		page.Data = append(page.Data, all[i].State())
	}
	return &SessionsOutput{Body: page}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	entry, ok := h.svc.Sessions.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return &SessionOutput{Body: SessionBody{entry.Session.State()}}, nil
}

// DeleteSession forgets a session. Its stream keeps running until the
// browser disconnects, but further events for it are rejected.
func (h *APIHandler) DeleteSession(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	if !h.svc.Sessions.Delete(input.ID) {
		return nil, huma.Error404NotFound("session not found")
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session closed"}}, nil
}
