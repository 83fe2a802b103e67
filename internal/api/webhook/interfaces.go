package webhook

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type WebhookUsecase interface {
	VerifySignature(payload []byte, signature string) error
	HandlePush(ctx context.Context, deliveryID string, payload []byte) (*entity.WebhookResult, error)
}
