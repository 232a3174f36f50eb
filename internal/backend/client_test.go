package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func testClient(url string) *Client {
	return New(Config{
		BaseURL:         url,
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func TestCollectionURL(t *testing.T) {
	c := New(Config{BaseURL: "http://backend:8000/"})
	if got, want := c.CollectionURL("5"), "http://backend:8000/collections/collection/5/"; got != want {
		t.Errorf("CollectionURL = %q, want %q", got, want)
	}
	if got, want := c.CollectionsURL(), "http://backend:8000/collections/"; got != want {
		t.Errorf("CollectionsURL = %q, want %q", got, want)
	}
}

func TestFeaturesURL(t *testing.T) {
	b := orb.Bound{Min: orb.Point{139.6, 35.6}, Max: orb.Point{139.8, 35.8}}

	got, err := FeaturesURL("http://backend/layers/vector/3/", b)
	if err != nil {
		t.Fatal(err)
	}
	if want := "http://backend/layers/vector/3/?bbox=139.6%2C35.6%2C139.8%2C35.8"; got != want {
		t.Errorf("FeaturesURL = %q, want %q", got, want)
	}

	got, err = FeaturesURL("http://backend/objects?layer=3", b)
	if err != nil {
		t.Fatal(err)
	}
	if want := "http://backend/objects?bbox=139.6%2C35.6%2C139.8%2C35.8&layer=3"; got != want {
		t.Errorf("FeaturesURL with query = %q, want %q", got, want)
	}
}

func TestCollectionRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/collection/5/" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"properties":{"name":"Tokyo","id":5},"layers":[
			{"type":"TileLayer-base","name":"OSM","layerUrl":"http://tiles/{z}/{x}/{y}.png","minZoom":8,"maxZoom":18,"attribution":"OSM"},
			{"type":"GeoJSON","name":"Cells","layerUrl":"http://backend/cells/","opacity":0.5,"minZoom":8,"maxZoom":18,"attribution":"","centerlat":35.0,"centerlon":139.0}
		]}`))
	}))
	defer srv.Close()

	coll, err := testClient(srv.URL).Collection(context.Background(), "5")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if coll.Properties.Name != "Tokyo" || len(coll.Layers) != 2 {
		t.Fatalf("collection = %+v", coll)
	}
	cells := coll.Layers[1]
	if cells.CenterLat == nil || *cells.CenterLat != 35.0 || cells.Opacity == nil || *cells.Opacity != 0.5 {
		t.Errorf("cells descriptor = %+v", cells)
	}
	if coll.Layers[0].Opacity != nil {
		t.Error("absent opacity should decode as nil")
	}
}

func TestCollectionGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Collection(context.Background(), "1")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 1 attempt + 3 retries", calls.Load())
	}
}

func TestCollectionNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Collection(context.Background(), "99")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCollectionMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Collection(context.Background(), "1"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestFeaturesSendsBBox(t *testing.T) {
	var gotBBox string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBBox = r.URL.Query().Get("bbox")
		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[139.7,35.7]},"properties":{"id":1}}
		]}`))
	}))
	defer srv.Close()

	b := orb.Bound{Min: orb.Point{139.5, 35.5}, Max: orb.Point{139.9, 35.9}}
	features, err := testClient(srv.URL).Features(context.Background(), srv.URL+"/cells/", b)
	if err != nil {
		t.Fatal(err)
	}
	if gotBBox != "139.5,35.5,139.9,35.9" {
		t.Errorf("bbox = %q", gotBBox)
	}
	if len(features) != 1 {
		t.Errorf("got %d features, want 1", len(features))
	}
}

func TestLegendIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Legend(context.Background(), srv.URL+"/legend.html"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestLegendReturnsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<i style="background:#00FFFF"></i> PCI set`))
	}))
	defer srv.Close()

	html, err := testClient(srv.URL).Legend(context.Background(), srv.URL+"/legend.html")
	if err != nil {
		t.Fatal(err)
	}
	if html != `<i style="background:#00FFFF"></i> PCI set` {
		t.Errorf("legend = %q", html)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testClient(srv.URL).Collection(ctx, "1"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() > 1 {
		t.Errorf("calls = %d, want at most 1", calls.Load())
	}
}
