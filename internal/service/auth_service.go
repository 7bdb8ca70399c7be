package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mmynk/homequest/internal/auth"
	"github.com/mmynk/homequest/internal/models"
	"github.com/mmynk/homequest/internal/storage"
)

// Credentials is a sign-up or sign-in request.
type Credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Session is returned after a successful sign-up or sign-in.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService registers accounts and issues tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account and signs it in.
func (s *AuthService) Register(ctx context.Context, req Credentials) (*Session, error) {
	s.logger.Info("Register request", "email", req.Email)

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, NewError(CodeInvalidArgument, auth.ErrInvalidCredentials).
			WithMessage("Email and password are required", "")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(strings.TrimSpace(req.Email), "@")
	}

	user, err := s.authenticator.Register(ctx, req.Email, displayName, req.Password)
	if err != nil {
		s.logger.Error("Registration failed", "email", req.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, NewError(CodeAlreadyExists, err).WithMessage("User already exists", "An account with this email is already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, NewError(CodeInvalidArgument, err).WithMessage("Weak password", err.Error())
		}
		return nil, internalError(err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, internalError(err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return &Session{Token: token, User: user}, nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req Credentials) (*Session, error) {
	s.logger.Info("Login request", "email", req.Email)

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, NewError(CodeInvalidArgument, auth.ErrInvalidCredentials).
			WithMessage("Email and password are required", "")
	}

	user, err := s.authenticator.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Email, "error", err)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, NewError(CodeUnauthenticated, err).WithMessage("Invalid email or password", "")
		}
		return nil, internalError(err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, internalError(err)
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return &Session{Token: token, User: user}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return NewError(CodeUnauthenticated, auth.ErrMissingToken).WithMessage("token not found", "")
	}
	s.logger.Info("Logout request", "user_id", claims.UserID)

	if err := s.jwtManager.Revoke(ctx, claims); err != nil {
		s.logger.Error("Logout failed", "user_id", claims.UserID, "error", err)
		return internalError(err)
	}
	return nil
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, NewError(CodeUnauthenticated, auth.ErrMissingToken).WithMessage("token not found", "")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, NewError(CodeNotFound, err).WithMessage("User not found", "")
		}
		s.logger.Error("CurrentUser failed", "user_id", userID, "error", err)
		return nil, internalError(err)
	}
	return user, nil
}
