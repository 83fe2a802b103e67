package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/repoqa/repoqa-backend/internal/entity"
)

// Claims is the payload of a capability token.
type Claims struct {
	SubjectID json.Number `json:"id"`
	Login     string      `json:"login"`
	Role      Role        `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 signed tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", entity.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", entity.ErrUnauthenticated)
		default:
			return nil, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
		}
	}

	if claims.Role == "" {
		return nil, fmt.Errorf("%w: token carries no role", entity.ErrUnauthenticated)
	}

	subject := claims.SubjectID.String()
	if subject == "" {
		subject = claims.Subject
	}

	return &Principal{
		SubjectID: subject,
		Login:     claims.Login,
		Role:      claims.Role,
	}, nil
}
