package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/AntanasZilinskas/fd2p/infrastructure/api/middleware"
	"github.com/AntanasZilinskas/fd2p/infrastructure/api/v1/dto"
)

const (
	msgQueryRequired = "Query is required"
	msgSimilarFailed = "Error fetching similar songs"
	msgSearchFailed  = "Error executing search"
	msgRequestFailed = "Error processing request"
)

// SearchSimilarTitles handles POST /functions/v1/search_similar_titles.
// It responds with the similarity index rows as a JSON array.
func (r *FunctionsRouter) SearchSimilarTitles(w http.ResponseWriter, req *http.Request) {
	var body dto.SearchSimilarTitlesRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgRequestFailed, err), r.logger)
		return
	}

	rows, err := r.client.Search.Similar(req.Context(), dto.QueryText(body.Query), dto.IntOrZero(body.TopN))
	if err != nil {
		middleware.WriteError(w, req, searchError(err, msgSimilarFailed), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rows)
}

// SearchSongs handles POST /functions/v1/search_songs.
// It responds with the lexical index rows as a JSON array. Errors are JSON too.
func (r *FunctionsRouter) SearchSongs(w http.ResponseWriter, req *http.Request) {
	var body dto.SearchSongsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteJSONError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgRequestFailed, err), r.logger)
		return
	}

	rows, err := r.client.Search.Lexical(req.Context(), dto.QueryText(body.Query), dto.IntOrZero(body.MaxResults))
	if err != nil {
		middleware.WriteJSONError(w, req, searchError(err, msgSearchFailed), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rows)
}

// searchError maps a search service error to its client-facing APIError.
func searchError(err error, indexMessage string) *middleware.APIError {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return middleware.NewAPIError(http.StatusBadRequest, msgQueryRequired, err)
	case errors.Is(err, service.ErrSearch):
		return middleware.NewAPIError(http.StatusInternalServerError, indexMessage, err)
	default:
		return middleware.NewAPIError(http.StatusInternalServerError, msgRequestFailed, err)
	}
}
