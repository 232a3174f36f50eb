package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-map/internal/server"
)

// Options defines all CLI flags and env vars for the map viewer.
// Flags: --host, --port, --backend, --collection, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_BACKEND, SERVICE_COLLECTION, ...
type Options struct {
	Host               string `doc:"Host to bind to" default:"0.0.0.0"`
	Port               int    `doc:"Port to listen on" short:"p" default:"8086"`
	Backend            string `doc:"Collection backend base URL" short:"b" default:"http://localhost:8000"`
	Collection         string `doc:"Collection loaded when the page names none" default:"1"`
	TimeoutSeconds     int    `doc:"Backend request timeout in seconds" default:"30"`
	Retries            int    `doc:"Retries for failed collection and feature fetches" default:"3"`
	ViewportWidth      int    `doc:"Assumed viewport width in pixels before the browser reports one" default:"1024"`
	ViewportHeight     int    `doc:"Assumed viewport height in pixels before the browser reports one" default:"768"`
	RefreshConcurrency int    `doc:"Maximum simultaneous layer fetches per session (0 = unbounded)" default:"4"`
	WebDir             string `doc:"Serve web/ from this directory instead of the embedded copy"`
}

func newServer(opts *Options) (*server.Server, error) {
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return server.New(server.Config{
		Host:               opts.Host,
		Port:               fmt.Sprintf("%d", opts.Port),
		BackendURL:         opts.Backend,
		DefaultCollection:  opts.Collection,
		Timeout:            time.Duration(opts.TimeoutSeconds) * time.Second,
		Retries:            uint64(retries),
		ViewportWidth:      opts.ViewportWidth,
		ViewportHeight:     opts.ViewportHeight,
		RefreshConcurrency: opts.RefreshConcurrency,
		WebDir:             opts.WebDir,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv, err := newServer(opts)
		if err != nil {
			log.Fatalf("Server setup: %v", err)
		}

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-map viewer starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Backend: %s (default collection %s)\n", opts.Backend, opts.Collection)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer?collection=%s\n", baseURL, opts.Collection)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "mapview"
	cli.Root().Short = "Collection map viewer"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}
