package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dskvich/polychat/pkg/auth"
	"github.com/dskvich/polychat/pkg/domain"
)

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type authService struct {
	users         UserRepository
	tokens        TokenIssuer
	signupBalance int64
	now           func() time.Time
	newID         func() string
}

func NewAuthService(users UserRepository, tokens TokenIssuer, signupBalance int64) *authService {
	return &authService{
		users:         users,
		tokens:        tokens,
		signupBalance: signupBalance,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// Register creates a user whose secret is the ordered animal sequence and signs them in.
func (s *authService) Register(ctx context.Context, name string, animals []string) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", domain.NewValidationError("name is required")
	}

	if _, err := auth.NormalizeSequence(animals); err != nil {
		return nil, "", domain.NewValidationError("%s", err.Error())
	}

	hash, err := auth.HashSequence(animals)
	if err != nil {
		return nil, "", fmt.Errorf("hashing animals: %w", err)
	}

	user := domain.User{
		ID:           s.newID(),
		Name:         name,
		AnimalHash:   hash,
		TokenBalance: s.signupBalance,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("saving user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return &user, token, nil
}

func (s *authService) Login(ctx context.Context, userID string, animals []string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("unknown user: %w", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("fetching user: %w", err)
	}

	if err := auth.CompareSequence(user.AnimalHash, animals); err != nil {
		slog.WarnContext(ctx, "Login rejected", "user_id", userID)
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

func (s *authService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return user, nil
}
