package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AntanasZilinskas/fd2p"
	apimiddleware "github.com/AntanasZilinskas/fd2p/infrastructure/api/middleware"
	v1 "github.com/AntanasZilinskas/fd2p/infrastructure/api/v1"
	mcpinternal "github.com/AntanasZilinskas/fd2p/internal/mcp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"
)

// APIServer provides an HTTP API backed by an fd2p Client.
type APIServer struct {
	client       *fd2p.Client
	version      string
	corsOrigins  []string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given Client.
// corsOrigins lists the browser origins allowed to call the functions;
// empty allows any origin.
func NewAPIServer(client *fd2p.Client, version string, corsOrigins []string) *APIServer {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &APIServer{
		client:      client,
		version:     version,
		corsOrigins: corsOrigins,
		logger:      client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	functions := v1.NewFunctionsRouter(a.client)

	router.Route("/functions/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.corsOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "apikey", "x-client-info", apimiddleware.CorrelationHeader},
			ExposedHeaders: []string{apimiddleware.CorrelationHeader},
			MaxAge:         300,
		}))
		r.Mount("/", functions.Routes())
	})

	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/", a.infoHandler)

	// No timeout middleware on /mcp: streamable HTTP keeps the response open.
	mcpSrv := mcpinternal.NewServer(a.client.Search, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *APIServer) infoHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    "fd2p",
		"version": a.version,
		"functions": []string{
			"/functions/v1/generate_title_embedding",
			"/functions/v1/search_similar_titles",
			"/functions/v1/search_songs",
		},
		"mcp": "/mcp",
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		server.Router().Use(apimiddleware.Logging(a.logger))
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
