package services

import (
	"context"
	"errors"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"golang.org/x/crypto/bcrypt"
)

// UserService encapsulates user use-cases.
type UserService struct {
	repo            UserRepository
	adminSecretHash []byte
	options
}

// NewUserService constructs a UserService. adminSecretHash is the bcrypt hash
// that Elevate compares against; elevation is disabled when it is empty.
func NewUserService(repo UserRepository, adminSecretHash string, opts ...Option) *UserService {
	return &UserService{
		repo:            repo,
		adminSecretHash: []byte(strings.TrimSpace(adminSecretHash)),
		options:         newOptions(opts),
	}
}

// Resolve returns the account for an authenticated principal, creating it on
// first sign-in as a BUYER with the default credits.
func (s *UserService) Resolve(ctx context.Context, principal types.Principal) (types.User, error) {
	if principal.Subject == "" {
		return types.User{}, apperr.ErrAuthenticationRequired
	}

	user, err := retryRead(ctx, "load user", func() (types.User, error) {
		return s.repo.GetByID(ctx, principal.Subject)
	})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return types.User{}, err
	}

	user, err = s.repo.Upsert(ctx, types.User{
		ID:      principal.Subject,
		Name:    optionalString(principal.Name),
		Email:   optionalString(strings.ToLower(principal.Email)),
		Avatar:  optionalString(principal.Avatar),
		Role:    types.RoleBuyer,
		Credits: types.DefaultCredits,
	})
	if err != nil {
		return types.User{}, apperr.Unavailable("create user", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return retryRead(ctx, "load user", func() (types.User, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// UpdateProfile changes the caller's own name, phone and avatar. An empty
// string clears a field.
func (s *UserService) UpdateProfile(ctx context.Context, callerID string, update types.ProfileUpdate) (types.User, error) {
	if err := validatePhone("phone", update.Phone); err != nil {
		return types.User{}, err
	}
	user, err := resolveCaller(ctx, s.repo, callerID)
	if err != nil {
		return types.User{}, err
	}

	if update.Name != nil {
		user.Name = optionalString(*update.Name)
	}
	if update.Phone != nil {
		user.Phone = optionalString(*update.Phone)
	}
	if update.Avatar != nil {
		user.Avatar = optionalString(*update.Avatar)
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, apperr.Unavailable("update user", err)
	}
	// Listings embed the owner's name.
	s.invalidate(ctx)
	return updated, nil
}

// List returns users newest first. q matches name or email.
func (s *UserService) List(ctx context.Context, callerID, q string, page, limit int) (types.Page[types.User], error) {
	if _, err := requireAdmin(ctx, s.repo, callerID); err != nil {
		return types.Page[types.User]{}, err
	}
	page, limit = clampWindow(page, limit)
	q = strings.TrimSpace(q)
	return findPage(ctx, "list users", page, limit, func() ([]types.User, int, error) {
		return s.repo.List(ctx, q, offset(page, limit), limit)
	})
}

// AdminUpdate lets an administrator edit any account, including its role.
func (s *UserService) AdminUpdate(ctx context.Context, callerID, id string, update types.UserAdminUpdate) (types.User, error) {
	if update.Role != nil {
		role := types.Role(strings.ToUpper(strings.TrimSpace(string(*update.Role))))
		if !role.Valid() {
			return types.User{}, apperr.Invalid("role", "must be BUYER, OWNER or ADMIN")
		}
		update.Role = &role
	}
	if update.Credits != nil && *update.Credits < 0 {
		return types.User{}, apperr.Invalid("credits", "must not be negative")
	}
	if err := validatePhone("phone", update.Phone); err != nil {
		return types.User{}, err
	}

	if _, err := requireAdmin(ctx, s.repo, callerID); err != nil {
		return types.User{}, err
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if update.Name != nil {
		user.Name = optionalString(*update.Name)
	}
	if update.Phone != nil {
		user.Phone = optionalString(*update.Phone)
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	if update.IsVerified != nil {
		user.IsVerified = *update.IsVerified
	}
	if update.Credits != nil {
		user.Credits = *update.Credits
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, apperr.Unavailable("update user", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes an account with its listings and every contact-access row
// that references it.
func (s *UserService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := requireAdmin(ctx, s.repo, callerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Unavailable("delete user", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", callerID)
	return nil
}

// Elevate grants the ADMIN role to the caller when secret matches the
// configured hash.
func (s *UserService) Elevate(ctx context.Context, callerID, secret string) (types.User, error) {
	user, err := resolveCaller(ctx, s.repo, callerID)
	if err != nil {
		return types.User{}, err
	}
	if len(s.adminSecretHash) == 0 || secret == "" {
		return types.User{}, apperr.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword(s.adminSecretHash, []byte(secret)); err != nil {
		s.logger.WarnContext(ctx, "admin elevation rejected", "user_id", user.ID)
		return types.User{}, apperr.ErrForbidden
	}
	if user.IsAdmin() {
		return user, nil
	}

	user.Role = types.RoleAdmin
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, apperr.Unavailable("elevate user", err)
	}
	s.logger.InfoContext(ctx, "user elevated to admin", "user_id", user.ID)
	return updated, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
