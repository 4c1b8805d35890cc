//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/servicemocks/mock_auth_service.go -package=servicemocks
package services

import (
	"fmt"

	"veilchat/auth"
	"veilchat/domain"
	"veilchat/errors"
	"veilchat/repositories"
)

type IAuthService interface {
	Register(username, phone, password string) (Token, domain.Identity, error)
	Login(username, password string) (Token, domain.Identity, error)
}

type Token string

type AuthService struct {
	users repositories.IUserRepository
	codec auth.TokenCodec
}

func NewAuthService(users repositories.IUserRepository, codec auth.TokenCodec) IAuthService {
	return &AuthService{users: users, codec: codec}
}

func (s *AuthService) Register(username, phone, password string) (Token, domain.Identity, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Phone:    phone,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hash in the service layer to keep the repository unaware of
	// plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(username, phone, hashedPassword)
	if err != nil {
		return "", domain.Identity{}, err // propagates ErrUserAlreadyExists
	}

	token, err := s.codec.Generate(user.Identity())
	if err != nil {
		return "", domain.Identity{}, errors.ErrTokenGeneration
	}
	return Token(token), user.Identity(), nil
}

func (s *AuthService) Login(username, password string) (Token, domain.Identity, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", domain.Identity{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", domain.Identity{}, errors.ErrInvalidCredentials
	}

	token, err := s.codec.Generate(user.Identity())
	if err != nil {
		return "", domain.Identity{}, errors.ErrTokenGeneration
	}
	return Token(token), user.Identity(), nil
}
