package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// TokenIssuer signs access tokens for a principal.
type TokenIssuer interface {
	Issue(p shared.Principal) (string, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	tokens TokenIssuer
	logger *slog.Logger
	cost   int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[User], error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[User]{}, err
	}
	return shared.NewPage(items, total, q), nil
}

// Active returns the account behind a token. Deleted or missing accounts are unauthorized, so
// tokens issued before a deletion stop working.
func (s *Service) Active(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if errors.Is(err, httpx.ErrNotFound) || (err == nil && u.IsDeleted) {
		return User{}, fmt.Errorf("%w: account %d is not active", httpx.ErrUnauthorized, id)
	}
	return u, err
}

// SignUp registers a USER account and returns its access token.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	u, err := s.register(ctx, req, []string{shared.RoleUser})
	if err != nil {
		return "", err
	}
	return s.issue(u)
}

// SignIn checks credentials and returns an access token.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (string, error) {
	u, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", invalidCredentials()
		}
		return "", err
	}
	if u.IsDeleted {
		return "", invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", invalidCredentials()
	}
	return s.issue(u)
}

// EnsureAdmin creates an administrator account unless the username is already taken.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	exists, err := s.repo.Exists(ctx, username, email)
	if err != nil || exists {
		return err
	}
	_, err = s.register(ctx, SignUpRequest{
		Name:     "Admin",
		LastName: "Admin",
		Email:    email,
		Username: username,
		Password: password,
	}, []string{shared.RoleUser, shared.RoleAdmin})
	if err == nil {
		s.logger.Info("admin account created", slog.String("username", username))
	}
	return err
}

// Delete soft-deletes a user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) register(ctx context.Context, req SignUpRequest, roles []string) (User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.Exists(ctx, username, email)
	if err != nil {
		return User{}, err
	}
	if exists {
		return User{}, fmt.Errorf("%w: username or email already registered", httpx.ErrDuplicate)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, User{
		Name:         strings.TrimSpace(req.Name),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Roles:        roles,
	})
}

func (s *Service) issue(u User) (string, error) {
	return s.tokens.Issue(shared.Principal{UserID: u.ID, Username: u.Username, Roles: u.Roles})
}

func invalidCredentials() error {
	return fmt.Errorf("%w: %w", httpx.ErrUnauthorized, shared.ErrInvalidCredentials)
}
