package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"confreg/internal/domain"
)

const tokenExpiry = 24 * time.Hour

type userService struct {
	userRepo domain.UserRepository
	hasher   domain.PasswordHasher
	issuer   domain.TokenIssuer
}

// NewUserService creates a UserService backed by the given repository,
// password hasher, and token issuer.
func NewUserService(userRepo domain.UserRepository, hasher domain.PasswordHasher, issuer domain.TokenIssuer) domain.UserService {
	return &userService{userRepo: userRepo, hasher: hasher, issuer: issuer}
}

func (s *userService) SignUp(ctx context.Context, email, password, name, lastName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		LastName:     lastName,
		PasswordHash: hash,
		PasswordSalt: salt,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrUserNotFound
		}
		return "", nil, fmt.Errorf("get user by email: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.PasswordSalt, password); err != nil {
		return "", nil, domain.ErrUserNotFound
	}
	token, err := s.issuer.Issue(user.ID, user.Email, tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
