package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// RegisterInput creates a tenant together with its first admin.
type RegisterInput struct {
	TenantName string `json:"tenant_name"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
}

// NewUserInput creates an additional user inside an existing tenant.
type NewUserInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     schema.Role `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *store.User `json:"user"`
}

// Accounts implements the account operations on top of the store.
type Accounts struct {
	store  store.Store
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewAccounts creates an Accounts service.
func NewAccounts(s store.Store, tokens *TokenIssuer, logger *slog.Logger) *Accounts {
	return &Accounts{store: s, tokens: tokens, logger: logger}
}

// ValidateEmail checks the address syntax.
func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid email %q", email).WithField("email")
	}
	return nil
}

// Register creates a tenant and its admin user.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	if strings.TrimSpace(in.TenantName) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "tenant name is required").WithField("tenant_name")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, schema.NewError(schema.ErrCodeConflict, "email already registered").WithField("email")
	} else if !schema.IsNotFound(err) {
		return nil, err
	}

	tenant := &store.Tenant{ID: uuid.New().String(), Name: strings.TrimSpace(in.TenantName)}
	if err := a.store.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	user := &store.User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Role:         schema.RoleAdmin,
		PasswordHash: hash,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("tenant registered",
		slog.String("tenant_id", tenant.ID),
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords produce the same UNAUTHORIZED error.
func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		if schema.IsNotFound(err) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, invalidCredentials()
	}
	token, exp, err := a.tokens.Issue(Principal{UserID: user.ID, TenantID: user.TenantID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// Me returns the caller's user record.
func (a *Accounts) Me(ctx context.Context, p Principal) (*store.User, error) {
	return a.store.GetUser(ctx, p.TenantID, p.UserID)
}

// CreateUser adds a user to the caller's tenant.
func (a *Accounts) CreateUser(ctx context.Context, p Principal, in NewUserInput) (*store.User, error) {
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = schema.RoleViewer
	}
	if !in.Role.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid role %q", in.Role).WithField("role")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &store.User{
		ID:           uuid.New().String(),
		TenantID:     p.TenantID,
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		PasswordHash: hash,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers lists the users of the caller's tenant.
func (a *Accounts) ListUsers(ctx context.Context, p Principal) ([]*store.User, error) {
	return a.store.ListUsers(ctx, p.TenantID)
}

// UpdateUserRole changes another user's role. Callers cannot change their own role.
func (a *Accounts) UpdateUserRole(ctx context.Context, p Principal, userID string, role schema.Role) error {
	if userID == p.UserID {
		return schema.NewError(schema.ErrCodeConflict, "cannot change your own role")
	}
	return a.store.UpdateUserRole(ctx, p.TenantID, userID, role)
}

// DeleteUser removes another user. Callers cannot delete themselves.
func (a *Accounts) DeleteUser(ctx context.Context, p Principal, userID string) error {
	if userID == p.UserID {
		return schema.NewError(schema.ErrCodeConflict, "cannot delete yourself")
	}
	return a.store.DeleteUser(ctx, p.TenantID, userID)
}

func invalidCredentials() *schema.Error {
	return schema.NewError(schema.ErrCodeUnauthorized, "invalid email or password")
}
