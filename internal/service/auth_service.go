package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/healthcare-coordination/internal/model"
	"github.com/iliyamo/healthcare-coordination/internal/queue"
	"github.com/iliyamo/healthcare-coordination/internal/repository"
	"github.com/iliyamo/healthcare-coordination/internal/utils"
)

const publishTimeout = 3 * time.Second

// UserStore is the credential store used by AuthService.
// *repository.UserRepo satisfies it.
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateWithProfile(ctx context.Context, u model.User, profile model.RoleProfile) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context, role model.Role, limit, offset int) ([]model.User, error)
	UpdateProfile(ctx context.Context, u model.User) error
	SetActive(ctx context.Context, id uint64, active bool) error
	Delete(ctx context.Context, id uint64) error
}

// AuthResult is returned by Register, Login and Refresh.  RefreshToken is
// zero for Refresh since refresh tokens are not rotated.
type AuthResult struct {
	AccessToken  utils.SignedToken
	RefreshToken utils.SignedToken
	User         model.PublicUser
}

// AuthService implements registration, login, token refresh and the
// account operations behind the profile and admin endpoints.
type AuthService struct {
	users      UserStore
	tokens     *utils.TokenIssuer
	events     EventPublisher
	bcryptCost int
	dummyHash  string
	logger     *slog.Logger

	publishing sync.WaitGroup
}

// NewAuthService wires the service.  events may be nil, in which case no
// events are published.
func NewAuthService(users UserStore, tokens *utils.TokenIssuer, events EventPublisher, bcryptCost int, logger *slog.Logger) (*AuthService, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("user store and token issuer are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	// Compared against when the email is unknown so a miss costs the same
	// bcrypt work as a wrong password.
	dummy, err := utils.HashPassword(uuid.NewString(), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		events:     events,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     logger,
	}, nil
}

// Register validates the input, creates the user and its role profile in
// one transaction, and returns a fresh token pair.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in = in.normalize()
	profile, err := in.validate()
	if err != nil {
		return AuthResult{}, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return AuthResult{}, storageErr("check email", err)
	}
	if exists {
		return AuthResult{}, ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	u := model.User{
		Email:             in.Email,
		PasswordHash:      hash,
		Role:              model.Role(in.Role),
		IsActive:          true,
		FullName:          in.FullName,
		PhoneNumber:       normalizePhone(in.PhoneNumber),
		DateOfBirth:       in.DateOfBirth,
		Gender:            in.Gender,
		PreferredLanguage: in.PreferredLanguage,
	}
	id, err := s.users.CreateWithProfile(ctx, u, profile)
	if errors.Is(err, repository.ErrEmailExists) {
		// lost a race with a concurrent registration
		return AuthResult{}, ErrDuplicateEmail
	}
	if err != nil {
		return AuthResult{}, storageErr("create user", err)
	}
	now := time.Now().UTC()
	u.ID = id
	u.CreatedAt, u.UpdatedAt = now, now

	res, err := s.issuePair(u)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		s.publishRegistered(u)
	}()
	return res, nil
}

// Login verifies the password before looking at the account status, so an
// inactive account is only revealed to someone who knows its password.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, validationErr("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(s.dummyHash, password)
		s.logger.Debug("login failed", "reason", "unknown email")
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, storageErr("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.logger.Debug("login failed", "reason", "wrong password", "user_id", u.ID)
		return AuthResult{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return AuthResult{}, ErrAccountInactive
	}
	return s.issuePair(u)
}

// Refresh exchanges a valid refresh token for a new access token.  The user
// is re-read so deactivation takes effect at the next refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, validationErr("refreshToken is required")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if errors.Is(err, utils.ErrTokenExpired) {
		return AuthResult{}, ErrExpiredRefreshToken
	}
	if err != nil {
		return AuthResult{}, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return AuthResult{}, storageErr("load user", err)
	}
	if !u.IsActive {
		return AuthResult{}, ErrAccountInactive
	}

	access, err := s.tokens.IssueAccess(claimsFor(u))
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	return AuthResult{AccessToken: access, User: u.Public()}, nil
}

// Logout only acknowledges the request.  Tokens stay valid until they
// expire; clients are expected to discard them.
func (s *AuthService) Logout(ctx context.Context) error {
	return nil
}

func (s *AuthService) issuePair(u model.User) (AuthResult, error) {
	c := claimsFor(u)
	access, err := s.tokens.IssueAccess(c)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(c)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return AuthResult{AccessToken: access, RefreshToken: refresh, User: u.Public()}, nil
}

// Drain blocks until events published by earlier registrations have been
// delivered or given up on.
func (s *AuthService) Drain() {
	s.publishing.Wait()
}

func (s *AuthService) publishRegistered(u model.User) {
	if s.events == nil {
		return
	}
	ev := queue.UserRegisteredEvent{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		FullName:     u.FullName,
		RegisteredAt: u.CreatedAt.Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.events.PublishUserRegistered(ctx, ev); err != nil {
		s.logger.Warn("publish user.registered failed", "user_id", u.ID, "error", err)
	}
}

func claimsFor(u model.User) utils.Claims {
	return utils.Claims{UserID: u.ID, Email: u.Email, Role: string(u.Role)}
}
