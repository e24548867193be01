package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"court-booking-server/booking"
	"court-booking-server/config"
	"court-booking-server/models"
	"court-booking-server/store"
	"court-booking-server/utils"
)

type RegisterInput struct {
	FullName    string `json:"full_name" validate:"required,max=255"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
	Password    string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      models.User `json:"user"`
}

// AuthService registers customers and issues access tokens.
type AuthService struct {
	users    store.Users
	log      *logrus.Logger
	validate *validator.Validate
}

func NewAuthService(users store.Users, log *logrus.Logger) *AuthService {
	return &AuthService{users: users, log: log, validate: newValidator()}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if phone := strings.TrimSpace(in.PhoneNumber); phone != "" {
		user.PhoneNumber = &phone
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("👤 User registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, booking.ErrNotFound) {
		return nil, booking.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, booking.Unauthorized("account is deactivated")
	}
	if !utils.CheckPasswordHash(in.Password, user.PasswordHash) {
		s.log.WithField("user_id", user.ID).Warn("🔒 Failed login attempt")
		return nil, booking.Unauthorized("invalid email or password")
	}
	return s.issue(user)
}

// Me loads the profile behind a verified token.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, booking.Unauthorized("account is deactivated")
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresIn: int64(config.AppConfig.JWT.ExpiryHours) * 3600,
		User:      *user,
	}, nil
}
