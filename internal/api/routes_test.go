package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-map/internal/backend"
	"github.com/joeblew999/plat-map/internal/service"
)

type fakeBackend struct {
	collections []service.Collection
	err         error
}

func (f *fakeBackend) Collections(context.Context) ([]service.Collection, error) {
	return f.collections, f.err
}

func (f *fakeBackend) Collection(_ context.Context, id string) (*service.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.collections {
		if fmt.Sprint(f.collections[i].Properties.ID) == id {
			return &f.collections[i], nil
		}
	}
	return nil, &backend.StatusError{URL: "http://backend/collections/collection/" + id + "/", StatusCode: http.StatusNotFound}
}

func (f *fakeBackend) Features(context.Context, string, orb.Bound) ([]*geojson.Feature, error) {
	return nil, nil
}

func (f *fakeBackend) Legend(context.Context, string) (string, error) { return "", nil }

func newTestAPI(t *testing.T, fb *fakeBackend) (humatest.TestAPI, *service.Registry) {
	t.Helper()
	cfg := huma.DefaultConfig("plat-map test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)

	sessions := service.NewRegistry(fb, service.SessionConfig{})
	RegisterRoutes(api, &Services{Sessions: sessions, Collections: fb})
	NewInfoHandler("http://backend", "1", sessions).RegisterRoutes(api)
	return api, sessions
}

func hasLink(header http.Header, want string) bool {
	for _, v := range header.Values("Link") {
		if v == want {
			return true
		}
	}
	return false
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t, &fakeBackend{})
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
	if !hasLink(resp.Header(), `</api/v1/collections>; rel="collections"`) {
		t.Errorf("missing collections link: %v", resp.Header().Values("Link"))
	}
}

func TestInfo(t *testing.T) {
	api, sessions := newTestAPI(t, &fakeBackend{})
	sessions.Create()
	resp := api.Get("/api/v1/info")
	var body InfoBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "plat-map" || body.Sessions != 1 || body.DefaultCollection != "1" {
		t.Fatalf("info=%+v", body)
	}
}

func TestCollections(t *testing.T) {
	fb := &fakeBackend{collections: []service.Collection{
		{Properties: service.CollectionProperties{ID: 1, Name: "Tokyo"}},
		{Properties: service.CollectionProperties{ID: 2, Name: "Osaka"}},
	}}
	api, _ := newTestAPI(t, fb)

	resp := api.Get("/api/v1/collections")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var list []service.Collection
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].Properties.Name != "Osaka" {
		t.Errorf("collections=%+v", list)
	}

	resp = api.Get("/api/v1/collections/2")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Osaka") {
		t.Errorf("get collection: %d %s", resp.Code, resp.Body.String())
	}
	if !hasLink(resp.Header(), `</api/v1/collections/2>; rel="self"`) {
		t.Errorf("missing self link: %v", resp.Header().Values("Link"))
	}

	if resp := api.Get("/api/v1/collections/9"); resp.Code != http.StatusNotFound {
		t.Errorf("missing collection status=%d, want 404", resp.Code)
	}
}

func TestCollectionsBackendDown(t *testing.T) {
	api, _ := newTestAPI(t, &fakeBackend{err: &backend.StatusError{URL: "http://backend/collections/", StatusCode: http.StatusServiceUnavailable}})
	if resp := api.Get("/api/v1/collections"); resp.Code != http.StatusBadGateway {
		t.Errorf("status=%d, want 502", resp.Code)
	}
	api, _ = newTestAPI(t, &fakeBackend{err: fmt.Errorf("decode: %w", backend.ErrMalformed)})
	if resp := api.Get("/api/v1/collections/1"); resp.Code != http.StatusBadGateway {
		t.Errorf("status=%d, want 502", resp.Code)
	}
}

func TestSessions(t *testing.T) {
	api, sessions := newTestAPI(t, &fakeBackend{})
	var ids []string
	for range 3 {
		ids = append(ids, sessions.Create().Session.ID())
	}

	resp := api.Get("/api/v1/sessions?offset=1&limit=1")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d %s", resp.Code, resp.Body.String())
	}
	var page struct {
		Total int                    `json:"total"`
		Data  []service.SessionState `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Data) != 1 || page.Data[0].ID != sessions.List()[1].ID() {
		t.Errorf("page=%+v", page)
	}
	if !hasLink(resp.Header(), `</api/v1/sessions?offset=2&limit=1>; rel="next"`) {
		t.Errorf("missing next link: %v", resp.Header().Values("Link"))
	}

	resp = api.Get("/api/v1/sessions/" + ids[0])
	if resp.Code != http.StatusOK {
		t.Fatalf("get status=%d", resp.Code)
	}
	if !hasLink(resp.Header(), `</api/v1/sessions/`+ids[0]+`>; rel="delete"; method="DELETE"; title="Close session"`) {
		t.Errorf("missing delete action: %v", resp.Header().Values("Link"))
	}
	if strings.Contains(strings.Join(resp.Header().Values("Link"), ","), `rel="move"`) {
		t.Error("unloaded session should not offer event actions")
	}

	if resp := api.Delete("/api/v1/sessions/" + ids[0]); resp.Code != http.StatusOK {
		t.Errorf("delete status=%d", resp.Code)
	}
	if resp := api.Get("/api/v1/sessions/" + ids[0]); resp.Code != http.StatusNotFound {
		t.Errorf("deleted session status=%d, want 404", resp.Code)
	}
	if resp := api.Delete("/api/v1/sessions/" + ids[0]); resp.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d, want 404", resp.Code)
	}
}
