package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	queryuc "github.com/repoqa/repoqa-backend/internal/usecase/query"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Handler struct {
	usecase QueryUsecase
}

func NewHandler(usecase QueryUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Query handles POST /query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Query")

	var req entity.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.usecase.Answer(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, resp)
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Error(ctx, message)
	}
	response.Error(w, status, message)
}

// handleUsecaseError maps query failures to a status. Every pipeline failure
// names the stage it happened at.
func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, entity.ErrMissingField) || errors.Is(err, entity.ErrInvalidFormat) || errors.Is(err, entity.ErrInvalidParameter) {
		h.respondError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	var qErr *queryuc.QueryError
	if !errors.As(err, &qErr) {
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	message := fmt.Sprintf("query failed at %s", qErr.Stage)
	switch {
	case errors.Is(err, entity.ErrUnknownRepository):
		h.respondError(ctx, w, http.StatusNotFound, message+": repository has no indexed documents", err)
	case errors.Is(err, entity.ErrEmbeddingModelMismatch):
		h.respondError(ctx, w, http.StatusConflict, message+": repository was indexed with a different embedding model", err)
	case qErr.Stage == queryuc.StageEmbedding || qErr.Stage == queryuc.StageCompletion:
		h.respondError(ctx, w, http.StatusBadGateway, message, err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, message, err)
	}
}
