// Package users handles accounts: registration, sign-in, token refresh,
// profile maintenance and the directory used to pick assignees.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"manageease/internal/apperr"
	"manageease/internal/auth"
	"manageease/internal/models"
	"manageease/internal/validate"
)

// DirectoryLimit caps the number of users returned by Directory.
const DirectoryLimit = 20

// Store is the user persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, changes map[string]any) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListActiveUsers(ctx context.Context, search string, limit int) ([]models.User, error)
	CountTasksByStatus(ctx context.Context, assigneeID string) (models.TaskCounts, error)
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Tokens issues and checks bearer tokens.
type Tokens interface {
	Issue(userID, email string) (auth.TokenPair, error)
	ValidateAccess(token string) (*auth.Claims, error)
	ValidateRefresh(token string) (*auth.Claims, error)
	RefreshTTL() time.Duration
}

// Session is returned by Login and Refresh.
type Session struct {
	User   models.User    `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Profile is the signed-in user's own account with task counters.
type Profile struct {
	models.User
	models.TaskCounts
}

// PublicUser is what other users may see of an account.
type PublicUser struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service implements the account operations.
type Service struct {
	store  Store
	hasher Hasher
	tokens Tokens
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService builds a user service.
func NewService(store Store, hasher Hasher, tokens Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Register creates an active account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return models.User{}, err
	}
	if err := checkPasswordBytes("password", in.Password); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}
	now := s.now()
	u, err := s.store.CreateUser(ctx, models.User{
		ID:           s.newID(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", slog.String("user", u.ID))
	return u, nil
}

// Login checks credentials and issues a token pair. Unknown emails, wrong
// passwords and deactivated accounts are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return Session{}, err
	}

	u, err := s.store.FindUserByEmail(ctx, in.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, apperr.New(apperr.ErrInvalidCredentials, "invalid email or password")
	}
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive || !s.hasher.Verify(in.Password, u.PasswordHash) {
		return Session{}, apperr.New(apperr.ErrInvalidCredentials, "invalid email or password")
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, apperr.New(apperr.ErrUnauthenticated, "refresh token required")
	}
	claims, err := s.tokens.ValidateRefresh(token)
	if err != nil {
		return Session{}, apperr.New(apperr.ErrUnauthenticated, "invalid or expired refresh token")
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// RefreshTTL is how long a refresh token, and the cookie carrying it, lives.
func (s *Service) RefreshTTL() time.Duration {
	return s.tokens.RefreshTTL()
}

// Authenticate resolves an access token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.ValidateAccess(token)
	if errors.Is(err, auth.ErrExpiredToken) {
		return models.User{}, apperr.New(apperr.ErrUnauthenticated, "token has expired")
	}
	if err != nil {
		return models.User{}, apperr.New(apperr.ErrUnauthenticated, "invalid token")
	}
	return s.activeUser(ctx, claims.UserID)
}

// Profile returns the requester's account with their task counters.
func (s *Service) Profile(ctx context.Context, r models.Requester) (Profile, error) {
	u, err := s.self(ctx, r)
	if err != nil {
		return Profile{}, err
	}
	counts, err := s.store.CountTasksByStatus(ctx, u.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, TaskCounts: counts}, nil
}

// UpdateProfile changes the supplied name and email fields.
func (s *Service) UpdateProfile(ctx context.Context, r models.Requester, in ProfileInput) (models.User, error) {
	u, err := s.self(ctx, r)
	if err != nil {
		return models.User{}, err
	}
	in.normalize()
	if err := in.check(); err != nil {
		return models.User{}, err
	}

	changes := map[string]any{}
	if in.FirstName != nil && *in.FirstName != u.FirstName {
		changes["first_name"] = *in.FirstName
	}
	if in.LastName != nil && *in.LastName != u.LastName {
		changes["last_name"] = *in.LastName
	}
	if in.Email != nil && *in.Email != u.Email {
		changes["email"] = *in.Email
	}
	if len(changes) == 0 {
		return u, nil
	}
	return s.store.UpdateUser(ctx, u.ID, changes)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, r models.Requester, in PasswordInput) error {
	u, err := s.self(ctx, r)
	if err != nil {
		return err
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	if err := checkPasswordBytes("newPassword", in.NewPassword); err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, u.PasswordHash) {
		return apperr.Validation(map[string]string{"currentPassword": "current password is incorrect"})
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateUser(ctx, u.ID, map[string]any{"password_hash": hash}); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.String("user", u.ID))
	return nil
}

// Deactivate disables the requester's account. Their tasks are kept.
func (s *Service) Deactivate(ctx context.Context, r models.Requester) error {
	u, err := s.self(ctx, r)
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateUser(ctx, u.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}
	s.logger.Info("user deactivated", slog.String("user", u.ID))
	return nil
}

// DeleteAccount removes the requester's account together with every task
// they created or are assigned to.
func (s *Service) DeleteAccount(ctx context.Context, r models.Requester) error {
	u, err := s.self(ctx, r)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("user", u.ID))
	return nil
}

// Directory lists active users matching search for the assignee picker.
func (s *Service) Directory(ctx context.Context, r models.Requester, search string) ([]models.UserRef, error) {
	if err := requireActive(r); err != nil {
		return nil, err
	}
	list, err := s.store.ListActiveUsers(ctx, search, DirectoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserRef, 0, len(list))
	for _, u := range list {
		out = append(out, u.Ref())
	}
	return out, nil
}

// GetUser returns the public profile of an active user.
func (s *Service) GetUser(ctx context.Context, r models.Requester, id string) (PublicUser, error) {
	if err := requireActive(r); err != nil {
		return PublicUser{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return PublicUser{}, err
	}
	if !u.IsActive {
		return PublicUser{}, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return PublicUser{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, CreatedAt: u.CreatedAt}, nil
}

func (s *Service) session(u models.User) (Session, error) {
	pair, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

func (s *Service) self(ctx context.Context, r models.Requester) (models.User, error) {
	if err := requireActive(r); err != nil {
		return models.User{}, err
	}
	return s.activeUser(ctx, r.UserID)
}

// activeUser loads id, treating a missing or disabled account as signed out.
func (s *Service) activeUser(ctx context.Context, id string) (models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, apperr.New(apperr.ErrUnauthenticated, "user no longer exists")
	}
	if err != nil {
		return models.User{}, err
	}
	if !u.IsActive {
		return models.User{}, apperr.New(apperr.ErrUnauthenticated, "account is deactivated")
	}
	return u, nil
}

func requireActive(r models.Requester) error {
	if r.UserID == "" || !r.IsActive {
		return apperr.New(apperr.ErrUnauthenticated, "authentication required")
	}
	return nil
}
