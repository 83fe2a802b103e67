package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/metrics"
	"github.com/repoqa/repoqa-backend/internal/repository"
	"go.uber.org/zap"
)

const signaturePrefix = "sha256="

// WebhookUsecase turns push notifications into Files Queue resubmissions
type WebhookUsecase struct {
	registry   repository.RepositoryRegistry
	statusRepo repository.FileStatusRepository
	publisher  FilePublisher
	secret     []byte
	deliveries *cache.Cache
	logger     *zap.Logger
}

func NewUsecase(
	registry repository.RepositoryRegistry,
	statusRepo repository.FileStatusRepository,
	publisher FilePublisher,
	cfg config.WebhookConfig,
	secret string,
	logger *zap.Logger,
) *WebhookUsecase {
	return &WebhookUsecase{
		registry:   registry,
		statusRepo: statusRepo,
		publisher:  publisher,
		secret:     []byte(secret),
		deliveries: cache.New(cfg.DedupTTL, 2*cfg.DedupTTL),
		logger:     logger,
	}
}

// ComputeDelta returns every file added, removed or modified by the commits
// of the push, deduplicated and sorted.
func ComputeDelta(event *entity.PushEvent) []string {
	if event == nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, commit := range event.Commits {
		for _, group := range [][]string{commit.Added, commit.Removed, commit.Modified} {
			for _, name := range group {
				if name != "" {
					seen[name] = struct{}{}
				}
			}
		}
	}

	delta := make([]string, 0, len(seen))
	for name := range seen {
		delta = append(delta, name)
	}
	slices.Sort(delta)
	return delta
}

// VerifySignature checks the X-Hub-Signature-256 header of a delivery. It
// accepts everything when no secret is configured.
func (uc *WebhookUsecase) VerifySignature(payload []byte, signature string) error {
	if len(uc.secret) == 0 {
		return nil
	}

	sig, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: missing webhook signature", entity.ErrUnauthenticated)
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: malformed webhook signature", entity.ErrUnauthenticated)
	}

	mac := hmac.New(sha256.New, uc.secret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("%w: webhook signature mismatch", entity.ErrUnauthenticated)
	}
	return nil
}

// HandlePush resubmits the delta of a push on the tracked branch of a
// configured repository. Unknown repositories, other refs and repeated
// delivery ids are no-ops.
func (uc *WebhookUsecase) HandlePush(ctx context.Context, deliveryID string, payload []byte) (*entity.WebhookResult, error) {
	var event entity.PushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: push payload: %v", entity.ErrInvalidFormat, err)
	}

	result, err := uc.handle(ctx, deliveryID, &event)
	if err != nil {
		return nil, err
	}

	metrics.RecordPushEvent(string(result.Outcome))
	ctxzap.Info(ctx, "push event handled",
		zap.String("delivery_id", deliveryID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("reason", result.Reason),
		zap.Int("files_queued", result.FilesQueued),
	)
	return result, nil
}

func (uc *WebhookUsecase) handle(ctx context.Context, deliveryID string, event *entity.PushEvent) (*entity.WebhookResult, error) {
	owner, name := event.Repository.OwnerAndName()
	if owner == "" || name == "" {
		return nil, fmt.Errorf("%w: push payload has no repository", entity.ErrMissingField)
	}

	repo, err := uc.registry.GetByFullName(ctx, owner, name)
	if err != nil {
		if errors.Is(err, entity.ErrRepositoryNotFound) {
			return ignored(name, "repository is not configured"), nil
		}
		return nil, fmt.Errorf("resolve repository %s/%s: %w", owner, name, err)
	}

	if event.Ref != "refs/heads/"+repo.Branch {
		return ignored(repo.Name, fmt.Sprintf("ref %s is not the tracked branch %s", event.Ref, repo.Branch)), nil
	}

	delta := ComputeDelta(event)
	if len(delta) == 0 {
		return ignored(repo.Name, "push changes no files"), nil
	}

	if deliveryID != "" {
		if err := uc.deliveries.Add(deliveryID, struct{}{}, cache.DefaultExpiration); err != nil {
			return &entity.WebhookResult{Outcome: entity.WebhookDuplicate, Repo: repo.Name}, nil
		}
	}

	if err := uc.statusRepo.MarkQueued(ctx, repo.Name, delta); err != nil {
		ctxzap.Warn(ctx, "failed to mark files queued", zap.Error(err))
	}

	published, err := uc.publisher.PublishFileTasks(ctx, repo.Details(), delta)
	if err != nil {
		// let the sender's redelivery try again
		uc.deliveries.Delete(deliveryID)
		return nil, fmt.Errorf("publish delta of %s (%d of %d published): %w", repo.Name, published, len(delta), err)
	}

	return &entity.WebhookResult{
		Outcome:     entity.WebhookQueued,
		Repo:        repo.Name,
		FilesQueued: published,
	}, nil
}

func ignored(repo, reason string) *entity.WebhookResult {
	return &entity.WebhookResult{
		Outcome: entity.WebhookIgnored,
		Reason:  reason,
		Repo:    repo,
	}
}
