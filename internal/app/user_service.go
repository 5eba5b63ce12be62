package app

import (
	"context"
	"fmt"
	"strings"

	"hightechcross/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// UserInput carries account fields; nil fields are left untouched on update.
type UserInput struct {
	Username  *string  `json:"username"`
	Email     *string  `json:"email"`
	Password  *string  `json:"password"`
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	IsStaff   *bool    `json:"is_staff"`
	Groups    []string `json:"groups"`
}

// Privileged reports whether in sets fields only staff may change.
func (in UserInput) Privileged() bool {
	return in.IsStaff != nil || in.Groups != nil
}

// userRecord is the shape validated before an account is stored.
type userRecord struct {
	Username  string   `json:"username" validate:"required,max=150"`
	Email     string   `json:"email" validate:"omitempty,email,max=254"`
	FirstName string   `json:"first_name" validate:"max=150"`
	LastName  string   `json:"last_name" validate:"max=150"`
	Groups    []string `json:"groups" validate:"dive,required,max=150"`
}

var orderableUserFields = map[string]bool{
	"id":          true,
	"username":    true,
	"email":       true,
	"first_name":  true,
	"last_name":   true,
	"is_staff":    true,
	"date_joined": true,
}

// UserService manages accounts.
type UserService struct {
	users UserRepository
	cfg   settings
}

func NewUserService(users UserRepository, opts ...Option) *UserService {
	return &UserService{users: users, cfg: newSettings(opts)}
}

// Create registers an account. Non-staff accounts join the team group unless
// groups are given explicitly.
func (s *UserService) Create(ctx context.Context, in UserInput) (domain.User, error) {
	if in.Password == nil || *in.Password == "" {
		return domain.User{}, fmt.Errorf("%w: password: required", domain.ErrInvalidInput)
	}
	u := domain.User{DateJoined: s.cfg.now().UTC()}
	apply(&u, in)
	if in.Groups == nil && !u.IsStaff {
		u.Groups = []string{domain.TeamGroup}
	}
	if u.Groups == nil {
		u.Groups = []string{}
	}
	if err := validateUser(u); err != nil {
		return domain.User{}, err
	}
	if err := s.setPassword(&u, *in.Password); err != nil {
		return domain.User{}, err
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// Update applies in to an account. A full update requires a username.
func (s *UserService) Update(ctx context.Context, id int64, in UserInput, partial bool) (domain.User, error) {
	if !partial && in.Username == nil {
		return domain.User{}, fmt.Errorf("%w: username: required", domain.ErrInvalidInput)
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	apply(&u, in)
	if err := validateUser(u); err != nil {
		return domain.User{}, err
	}
	if in.Password != nil && *in.Password != "" {
		if err := s.setPassword(&u, *in.Password); err != nil {
			return domain.User{}, err
		}
	}
	if err := s.users.UpdateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.users.DeleteUser(ctx, id)
}

// List returns accounts matching filter. Ordering on an unknown field is ignored.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if !orderableUserFields[filter.OrderBy] {
		filter.OrderBy = ""
		filter.Desc = false
	}
	return s.users.ListUsers(ctx, filter)
}

// ParseOrdering splits "-field" into ("field", true).
func ParseOrdering(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	if strings.HasPrefix(raw, "-") {
		return raw[1:], true
	}
	return raw, false
}

// EnsureUser creates the account unless the username is already taken.
func (s *UserService) EnsureUser(ctx context.Context, in UserInput) (domain.User, bool, error) {
	if in.Username != nil {
		u, err := s.users.GetUserByUsername(ctx, *in.Username)
		if err == nil {
			return u, false, nil
		}
		if domain.KindOf(err) != domain.KindNotFound {
			return domain.User{}, false, err
		}
	}
	u, err := s.Create(ctx, in)
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func (s *UserService) setPassword(u *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func apply(u *domain.User, in UserInput) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.IsStaff != nil {
		u.IsStaff = *in.IsStaff
	}
	if in.Groups != nil {
		u.Groups = in.Groups
	}
}

func validateUser(u domain.User) error {
	return validateStruct(userRecord{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Groups:    u.Groups,
	})
}
