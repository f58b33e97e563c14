package handler

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jonesrussell/godash/internal/domain"
	"github.com/jonesrussell/godash/internal/store"
)

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 8

// Register creates a user with a bcrypt password hash.
func (h *Handler) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := h.users.Create(ctx, user); err != nil {
		return nil, err
	}

	h.logger.Info("user registered", "email", email)
	return user, nil
}

// Authenticate verifies a password against the stored hash. An unknown
// email and a wrong password return the same error.
func (h *Handler) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
