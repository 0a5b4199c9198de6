package service

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = errs.Unauthorized("invalid credentials")

func (s *Service) RegisterUser(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return model.AuthResponse{}, errs.Validation("email is required")
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return model.AuthResponse{}, errs.Validation("unknown role")
	}
	if _, err := s.repo.Users().FindByEmail(ctx, email); err == nil {
		return model.AuthResponse{}, errs.Validation("email already registered")
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.AuthResponse{}, errors.Wrap(err, "hash password")
	}
	now := s.now()
	user, err := s.repo.Users().Create(ctx, model.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hash),
		Name:      strings.TrimSpace(req.Name),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return model.AuthResponse{}, err
	}
	return s.authResponse(user)
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	user, err := s.repo.Users().FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AuthResponse{}, errInvalidCredentials
		}
		return model.AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, errInvalidCredentials
	}
	if !user.IsActive {
		return model.AuthResponse{}, errs.Unauthorized("user account is disabled")
	}
	return s.authResponse(user)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := s.repo.Users().FindByID(ctx, id)
	if err != nil {
		return model.User{}, notFound(err, "user not found")
	}
	return user, nil
}

func (s *Service) authResponse(user model.User) (model.AuthResponse, error) {
	if s.tokens == nil {
		return model.AuthResponse{User: user}, nil
	}
	token, err := s.tokens.Issue(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		return model.AuthResponse{}, errors.Wrap(err, "issue token")
	}
	return model.AuthResponse{User: user, AccessToken: token}, nil
}
