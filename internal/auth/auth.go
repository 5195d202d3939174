// Package auth checks operator credentials against the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrMissingName        = errors.New("name is required")
)

// User is a registered operator.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists users.
type Store interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
}

// Service verifies and registers credentials.
type Service struct {
	store  Store
	cost   int
	logger *logrus.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost for new password hashes.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithLogger sets the service logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	return s
}

// CheckCredentials reports whether password matches the stored hash for
// email. Unknown users and wrong passwords both yield false with a nil error;
// an error is returned only when the check itself could not be made.
func (s *Service) CheckCredentials(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, ErrMissingCredentials
	}

	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.logger.WithField("email", email).Debug("Login attempt for unknown user")
		return false, nil
	}
	if err != nil {
		s.logger.WithError(err).Error("Database login error")
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	switch {
	case err == nil:
		s.logger.WithField("email", email).Info("Login successful")
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		s.logger.WithField("email", email).Debug("Login attempt with wrong password")
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}

// Register creates a user with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, ErrMissingName
	}
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if len(password) < MinPasswordLength {
		return User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, User{Name: name, Email: email, PasswordHash: string(hash)})
	if err != nil {
		return User{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"id":    u.ID,
		"email": u.Email,
	}).Info("User created")
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
