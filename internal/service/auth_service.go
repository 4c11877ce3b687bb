package service

import (
	"context"
	"errors"
	"fmt"

	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	staffRepo ports.StaffRepository
	tokenSvc  ports.TokenService
	log       zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(staffRepo ports.StaffRepository, tokenSvc ports.TokenService, log zerolog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		staffRepo: staffRepo,
		tokenSvc:  tokenSvc,
		log:       log,
	}
}

// Login validates staff credentials and returns a session token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, apperror.ErrInvalidCredentials()
	}

	staff, err := s.staffRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find staff: %w", err))
	}
	if staff == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.log.Warn().Str("username", username).Msg("failed login attempt")
			return nil, apperror.ErrInvalidCredentials()
		}
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}

	if !staff.IsActive() {
		return nil, apperror.ErrStaffSuspended()
	}

	token, expiresAt, err := s.tokenSvc.Generate(staff.ID, staff.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("username", username).Msg("staff logged in")
	return &ports.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Staff:     staff,
	}, nil
}

// HashPassword produces the bcrypt hash stored on a staff account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
