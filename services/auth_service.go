package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
	// CheckAvailability — предварительная проверка занятости email/nickname
	// для формы регистрации.
	CheckAvailability(ctx context.Context, email, nickname string) (*Availability, error)
}

type RegisterInput struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string
	Password string
}

type Availability struct {
	EmailTaken    bool `json:"email_taken"`
	NicknameTaken bool `json:"nickname_taken"`
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Nickname = strings.TrimSpace(input.Nickname)
	if input.Email == "" || input.Nickname == "" {
		return nil, ErrValidationFailed
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Nickname:     input.Nickname,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserNicknameConflict):
			return nil, ErrUserNicknameConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(input.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) CheckAvailability(ctx context.Context, email, nickname string) (*Availability, error) {
	result := &Availability{}
	if email != "" {
		taken, err := s.userRepo.EmailExists(ctx, strings.TrimSpace(strings.ToLower(email)))
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		result.EmailTaken = taken
	}
	if nickname != "" {
		taken, err := s.userRepo.NicknameExists(ctx, strings.TrimSpace(nickname))
		if err != nil {
			return nil, fmt.Errorf("failed to check nickname: %w", err)
		}
		result.NicknameTaken = taken
	}
	return result, nil
}
