// Package v1 serves the title embedding and search functions over HTTP.
package v1

import (
	"log/slog"
	"time"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// SearchTimeout bounds the search endpoints. The batch endpoint has no
// timeout so a long backfill is never cut off mid-batch.
const SearchTimeout = 60 * time.Second

// FunctionsRouter handles the /functions/v1 endpoints.
type FunctionsRouter struct {
	client *fd2p.Client
	logger *slog.Logger
}

// NewFunctionsRouter creates a new FunctionsRouter.
func NewFunctionsRouter(client *fd2p.Client) *FunctionsRouter {
	return &FunctionsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for the function endpoints.
func (r *FunctionsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/generate_title_embedding", r.GenerateTitleEmbedding)

	router.Group(func(g chi.Router) {
		g.Use(chimiddleware.Timeout(SearchTimeout))
		g.Post("/search_similar_titles", r.SearchSimilarTitles)
		g.Post("/search_songs", r.SearchSongs)
	})

	return router
}
