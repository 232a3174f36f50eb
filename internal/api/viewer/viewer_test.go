package viewer

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-map/internal/service"
	"github.com/joeblew999/plat-map/internal/templates"
	"github.com/joeblew999/plat-map/web"
)

type stubFetcher struct{}

func (stubFetcher) Collection(_ context.Context, id string) (*service.Collection, error) {
	if id != "7" {
		return nil, errors.New("404 Not Found")
	}
	lat, lon := 35.0, 139.0
	return &service.Collection{
		Properties: service.CollectionProperties{Name: "Tokyo"},
		Layers: []service.LayerDescriptor{
			{Type: service.KindBaseTile, Name: "OSM", LayerURL: "http://tiles/{z}/{x}/{y}.png"},
			{Type: service.KindGeoJSON, Name: "Cells", LayerURL: "http://backend/cells/", CenterLat: &lat, CenterLon: &lon},
		},
	}, nil
}

func (stubFetcher) Features(context.Context, string, orb.Bound) ([]*geojson.Feature, error) {
	f := geojson.NewFeature(orb.Point{139.01, 35.01})
	f.Properties["id"] = 1.0
	return []*geojson.Feature{f}, nil
}

func (stubFetcher) Legend(context.Context, string) (string, error) {
	return "", errors.New("no legend")
}

func newTestServer(t *testing.T) (*httptest.Server, *service.Registry) {
	t.Helper()
	renderer, err := templates.New(web.FS)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("viewer test", "1.0.0"))
	sessions := service.NewRegistry(stubFetcher{}, service.SessionConfig{})
	NewHandler(sessions, renderer).RegisterRoutes(api)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sessions
}

// openStream reads the stream until every marker has been seen.
func openStream(t *testing.T, ctx context.Context, url string, markers ...string) string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type=%q", ct)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	var seen strings.Builder
	deadline := time.After(5 * time.Second)
	for {
		done := true
		for _, m := range markers {
			if !strings.Contains(seen.String(), m) {
				done = false
			}
		}
		if done {
			return seen.String()
		}
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream ended early:\n%s", seen.String())
			}
			seen.WriteString(line + "\n")
		case <-deadline:
			t.Fatalf("timed out waiting for %v in:\n%s", markers, seen.String())
		}
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func TestStreamLoadsCollection(t *testing.T) {
	srv, sessions := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := openStream(t, ctx, srv.URL+"/api/v1/viewer/stream?collection=7&display-legend=false",
		"sessionid", CommandEvent, "setView", "<h4>Tokyo</h4>", "addFeature")
	if !strings.Contains(out, `"displaylegend":false`) {
		t.Errorf("page options not sent as signals:\n%s", out)
	}
	if sessions.Len() != 1 {
		t.Fatalf("sessions=%d, want 1", sessions.Len())
	}
	id := sessions.List()[0].ID()
	base := srv.URL + "/api/v1/viewer/sessions/" + id

	if resp := post(t, base+"/move", `{"bbox":"139,35,139.1,35.1","zoom":15}`); resp.StatusCode != http.StatusOK {
		t.Errorf("move status=%d", resp.StatusCode)
	}
	if resp := post(t, base+"/move", `{"bbox":"east,west"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad bbox status=%d, want 400", resp.StatusCode)
	}
	if resp := post(t, base+"/overlayremove", `{"overlay":"Cells"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("overlayremove status=%d", resp.StatusCode)
	}
	if resp := post(t, base+"/overlayadd", `{"overlay":"Nope"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown overlay status=%d, want 404", resp.StatusCode)
	}
	if resp := post(t, base+"/overlayadd", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing overlay status=%d, want 400", resp.StatusCode)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sessions.Len() != 0 {
		t.Error("session not removed after disconnect")
	}
}

func TestStreamShowsLoadError(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := openStream(t, ctx, srv.URL+"/api/v1/viewer/stream?collection=99", "404 Not Found", "<strong>Error</strong>")
	if strings.Contains(out, "setView") {
		t.Error("failed load should not set a view")
	}
}

func TestEventUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := post(t, srv.URL+"/api/v1/viewer/sessions/nope/move", `{"bbox":"1,2,3,4"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status=%d, want 404", resp.StatusCode)
	}
}

func TestControlDOMID(t *testing.T) {
	tests := map[string]string{
		"info":             "control-info",
		"legend-Cells":     "control-legend-Cells",
		"legend-Site list": "control-legend-Site-list",
		"legend-a/b#c":     "control-legend-a-b-c",
	}
	for in, want := range tests {
		if got := ControlDOMID(in); got != want {
			t.Errorf("ControlDOMID(%q)=%q, want %q", in, got, want)
		}
	}
}
