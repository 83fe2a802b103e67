package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Action is an operation class guarded by the gate.
type Action int

const (
	// ActionQuery covers read operations: asking questions and listing state.
	ActionQuery Action = iota
	// ActionMutate covers repository configuration and resync.
	ActionMutate
)

func (a Action) String() string {
	switch a {
	case ActionQuery:
		return "query"
	case ActionMutate:
		return "mutate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Principal is the identity asserted by a verified capability token.
type Principal struct {
	SubjectID string `json:"id"`
	Login     string `json:"login"`
	Role      Role   `json:"role"`
}

// TokenVerifier decodes a bearer token into a principal. Implementations
// return entity.ErrUnauthenticated for any expired, malformed or badly
// signed token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type Gate struct {
	verifier TokenVerifier
}

func NewGate(verifier TokenVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authorize verifies token and checks that its role may perform action.
func (g *Gate) Authorize(ctx context.Context, token string, action Action) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", entity.ErrUnauthenticated)
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if !allowed(principal.Role, action) {
		return principal, fmt.Errorf("%w: role %q cannot %s", entity.ErrForbidden, principal.Role, action)
	}

	return principal, nil
}

func allowed(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return action == ActionQuery || action == ActionMutate
	case RoleUser:
		return action == ActionQuery
	default:
		return false
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
