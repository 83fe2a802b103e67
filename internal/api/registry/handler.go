package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Handler struct {
	usecase RegistryUsecase
}

func NewHandler(usecase RegistryUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// ConfigureRepository handles POST /repositories
func (h *Handler) ConfigureRepository(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ConfigureRepository")

	var req entity.ConfigureRepositoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctxzap.Info(ctx, "configuring repository",
		zap.String("repo_id", req.RepoID),
		zap.String("branch", req.Branch),
	)

	result, err := h.usecase.Configure(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyConfigured {
		status = http.StatusOK
	}
	response.JSON(w, status, result)
}

// ListRepositories handles GET /repositories
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListRepositories")

	resp, err := h.usecase.List(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "repositories listed", zap.Int("count", len(resp.Repositories)))
	response.Success(w, resp)
}

// GetStatus handles GET /repositories/{repo}/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "repo")
	ctx := logger.AddFields(r.Context(),
		zap.String("repo", name),
		zap.String("action", "GetStatus"),
	)

	status, err := h.usecase.Status(ctx, name)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, status)
}

// ResyncRepository handles POST /repositories/{repo}/resync
func (h *Handler) ResyncRepository(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "repo")
	ctx := logger.AddFields(r.Context(),
		zap.String("repo", name),
		zap.String("action", "ResyncRepository"),
	)

	var req entity.ResyncRepositoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.Name = name

	result, err := h.usecase.Resync(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Accepted(w, result)
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Error(ctx, message)
	}
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrMissingField) || errors.Is(err, entity.ErrInvalidFormat) || errors.Is(err, entity.ErrInvalidParameter):
		h.respondError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrRepositoryNotFound):
		h.respondError(ctx, w, http.StatusNotFound, "repository not found", err)
	case errors.Is(err, entity.ErrRepositoryNotAccessible):
		h.respondError(ctx, w, http.StatusForbidden, "repository is not readable with the supplied token", err)
	case errors.Is(err, entity.ErrRepositoryConflict):
		h.respondError(ctx, w, http.StatusConflict, "a repository with this name is already configured", err)
	case errors.Is(err, entity.ErrWebhookRegistration):
		h.respondError(ctx, w, http.StatusBadGateway, "failed to register webhook", err)
	case errors.Is(err, entity.ErrBrokerUnavailable):
		h.respondError(ctx, w, http.StatusServiceUnavailable, "message broker unavailable", err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
