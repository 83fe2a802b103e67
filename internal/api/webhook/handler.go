package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	"go.uber.org/zap"
)

const maxPayloadSize = 25 << 20

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

type Handler struct {
	usecase WebhookUsecase
}

func NewHandler(usecase WebhookUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// GitHubEvent handles POST /webhooks/github
func (h *Handler) GitHubEvent(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get(headerEvent)
	deliveryID := r.Header.Get(headerDelivery)
	ctx := logger.AddFields(r.Context(),
		zap.String("action", "GitHubEvent"),
		zap.String("event", event),
		zap.String("delivery_id", deliveryID),
	)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "failed to read payload", err)
		return
	}

	if err := h.usecase.VerifySignature(payload, r.Header.Get(headerSignature)); err != nil {
		h.respondError(ctx, w, http.StatusUnauthorized, "invalid signature", err)
		return
	}

	switch event {
	case "ping":
		response.Success(w, &entity.WebhookResult{Outcome: entity.WebhookIgnored, Reason: "pong"})
		return
	case "push":
	default:
		ctxzap.Debug(ctx, "ignoring webhook event")
		response.Success(w, &entity.WebhookResult{Outcome: entity.WebhookIgnored, Reason: "event " + event + " is not handled"})
		return
	}

	result, err := h.usecase.HandlePush(ctx, deliveryID, payload)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == entity.WebhookQueued {
		status = http.StatusAccepted
	}
	response.JSON(w, status, result)
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
	case errors.Is(err, entity.ErrMissingField) || errors.Is(err, entity.ErrInvalidFormat):
		h.respondError(ctx, w, http.StatusBadRequest, "invalid push payload", err)
	case errors.Is(err, entity.ErrBrokerUnavailable):
		h.respondError(ctx, w, http.StatusServiceUnavailable, "message broker unavailable", err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
