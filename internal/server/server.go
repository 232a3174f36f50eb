package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-map/internal/api"
	"github.com/joeblew999/plat-map/internal/api/viewer"
	"github.com/joeblew999/plat-map/internal/backend"
	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/query"
	"github.com/joeblew999/plat-map/internal/service"
	"github.com/joeblew999/plat-map/internal/templates"
	"github.com/joeblew999/plat-map/web"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string

	// BackendURL is the root of the collection backend.
	BackendURL string

	// DefaultCollection is loaded when the page names no collection.
	DefaultCollection string

	// Timeout and Retries bound backend requests.
	Timeout time.Duration
	Retries uint64

	// ViewportWidth and ViewportHeight size the initial bounds estimate.
	ViewportWidth  int
	ViewportHeight int

	// RefreshConcurrency bounds simultaneous layer fetches per session.
	RefreshConcurrency int

	// WebDir serves pages and assets from disk instead of the embedded
	// copy, for working on the front end.
	WebDir string
}

// Server is the map viewer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	web      fs.FS
	page     *template.Template
	services *api.Services
	renderer *templates.Renderer
}

// New creates a new map viewer server.
func New(cfg Config) (*Server, error) {
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-map API", "1.0.0")
	humaConfig.Info.Description = "Collection map viewer: streams map sessions to the browser and proxies the collection backend."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	webFS := fs.FS(web.FS)
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	renderer, err := templates.New(webFS)
	if err != nil {
		return nil, fmt.Errorf("fragment templates: %w", err)
	}
	page, err := template.ParseFS(webFS, "templates/viewer.html")
	if err != nil {
		return nil, fmt.Errorf("viewer page: %w", err)
	}

	client := backend.New(backend.Config{
		BaseURL:    cfg.BackendURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retries,
	})
	services := &api.Services{
		Sessions: service.NewRegistry(client, service.SessionConfig{
			DefaultCollection:  cfg.DefaultCollection,
			ViewportWidth:      cfg.ViewportWidth,
			ViewportHeight:     cfg.ViewportHeight,
			RefreshConcurrency: cfg.RefreshConcurrency,
		}),
		Collections: client,
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		web:      webFS,
		page:     page,
		services: services,
		renderer: renderer,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.BackendURL, s.config.DefaultCollection, s.services.Sessions).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	viewer.NewHandler(s.services.Sessions, s.renderer).RegisterRoutes(s.humaAPI)

	// Static files
	static, err := fs.Sub(s.web, "static")
	if err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	// Page routes
	s.mux.HandleFunc("GET /viewer", s.handleViewer)
	s.mux.HandleFunc("GET /collections/collection/{id}/map", s.handleCollectionMap)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range []string{
		`</viewer>; rel="viewer"`,
		`</health>; rel="health"`,
		`</openapi.json>; rel="service-desc"`,
	} {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-map",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	opts := query.ViewerOptions(query.Parse(r.URL.RawQuery))
	if opts.Collection == "" {
		opts.Collection = s.config.DefaultCollection
	}
	data, err := humastar.NewPageData("Collection map", map[string]any{
		"sessionid":     "",
		"collection":    opts.Collection,
		"displaylabels": opts.DisplayLabels,
		"displaylegend": opts.DisplayLegend,
		"bbox":          opts.BBox,
		"zoom":          service.InitialZoom,
		"overlay":       "",
		"error":         "",
	}, "/api/v1/viewer/stream")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		log.Printf("viewer page: %v", err)
	}
}

// handleCollectionMap is the backend's per-collection map link; it opens
// the viewer on that collection.
func (s *Server) handleCollectionMap(w http.ResponseWriter, r *http.Request) {
	target := "/viewer?" + url.Values{query.KeyCollection: {r.PathValue("id")}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
