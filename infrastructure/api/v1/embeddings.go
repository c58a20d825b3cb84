package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/infrastructure/api/middleware"
	"github.com/AntanasZilinskas/fd2p/infrastructure/api/v1/dto"
)

const (
	msgInvalidRequest  = "Invalid request data"
	msgBatchDone       = "Embeddings generated for all missing records"
	msgBatchFailed     = "Error during batch processing"
	msgRecordDone      = "Title embedding generated and stored successfully"
	msgRecordNotStored = "Error updating title embedding"
	msgRecordNotEmbed  = "Error generating embedding"
)

// GenerateTitleEmbedding handles POST /functions/v1/generate_title_embedding.
// With initialize set it backfills every record lacking an embedding,
// otherwise it embeds the single record in the body.
func (r *FunctionsRouter) GenerateTitleEmbedding(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.GenerateTitleEmbeddingRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgRequestFailed, err), r.logger)
		return
	}

	if body.Initialize {
		result, err := r.client.Embeddings.Backfill(ctx)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgBatchFailed, err), r.logger)
			return
		}
		r.logger.Info("backfill finished",
			"batches", result.Batches,
			"embedded", result.Embedded,
			"failed", result.Failed,
		)
		middleware.WriteText(w, http.StatusOK, msgBatchDone)
		return
	}

	rec := body.Record
	if rec == nil || strings.TrimSpace(rec.Title) == "" || rec.ID == nil {
		cause := fmt.Errorf("%w: record with id and title is required", service.ErrInvalidInput)
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, msgInvalidRequest, cause), r.logger)
		return
	}

	err := r.client.Embeddings.EmbedRecord(ctx, title.NewRecord(*rec.ID, rec.Title))
	switch {
	case err == nil:
		middleware.WriteText(w, http.StatusOK, msgRecordDone)
	case errors.Is(err, service.ErrInvalidInput):
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, msgInvalidRequest, err), r.logger)
	case errors.Is(err, service.ErrWrite):
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgRecordNotStored, err), r.logger)
	default:
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, msgRecordNotEmbed, err), r.logger)
	}
}
