// Package auth issues and verifies JWT access and refresh tokens, stores
// login sessions and provides the HTTP middleware that guards the API.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/services"
	"accounting/internal/storage"
)

const MinPasswordLength = 8

const msgInvalidCredentials = "Invalid credentials"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Role      core.Role `json:"role"`
	SessionID string    `json:"session_id"`
}

func (p Principal) IsAdmin() bool { return p.Role == core.RoleAdmin }

// Tokens is the token pair returned by login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type LoginResult struct {
	User core.User `json:"user"`
	Tokens
}

// Client describes where a login came from.
type Client struct {
	IP        string
	UserAgent string
}

type RegisterInput struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      core.Role `json:"role"`
}

type Service struct {
	store  storage.Store
	issuer *Issuer
	now    func() time.Time
	logger *log.Logger
}

func NewService(store storage.Store, issuer *Issuer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		store:  store,
		issuer: issuer,
		now:    issuer.now,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) userByEmail(ctx context.Context, email string) (core.User, bool, error) {
	rows, err := s.store.Select(ctx, core.ResourceUsers.Table(), storage.Query{
		Filters: []storage.Filter{storage.Eq("email", strings.ToLower(strings.TrimSpace(email)))},
		Limit:   1,
	})
	if err != nil {
		return core.User{}, false, core.Store("find user", err)
	}
	if len(rows) == 0 {
		return core.User{}, false, nil
	}
	return services.ToUser(rows[0]), true, nil
}

func (s *Service) userByID(ctx context.Context, id string) (core.User, error) {
	row, err := s.store.Get(ctx, core.ResourceUsers.Table(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, core.NotFound("User", id)
	}
	if err != nil {
		return core.User{}, core.Store("get user", err)
	}
	return services.ToUser(row), nil
}

// Login checks the credentials, opens a session and returns a token pair.
// Unknown, inactive and wrong-password logins are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string, c Client) (LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return LoginResult{}, core.Invalid("", "Email and password are required")
	}
	u, ok, err := s.userByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok || !u.IsActive {
		s.logger.WarnContext(ctx, "Login rejected", "email", email, "reason", "unknown or inactive user")
		return LoginResult{}, core.Unauthorized(msgInvalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.WarnContext(ctx, "Login rejected", "email", email, "reason", "bad password")
		return LoginResult{}, core.Unauthorized(msgInvalidCredentials)
	}

	var tokens Tokens
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		tokens, err = s.openSession(ctx, tx, u, c)
		if err != nil {
			return err
		}
		rows, err := tx.Update(ctx, core.ResourceUsers.Table(),
			storage.Row{"last_login_at": s.now()}, storage.Eq("id", u.ID))
		if err != nil {
			return core.Store("update last login", err)
		}
		if len(rows) > 0 {
			u = services.ToUser(rows[0])
		}
		return nil
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in",
		log.NewFields().WithUser(u.ID, string(u.Role)).WithOperation(log.OpLogin).ToSlice()...)
	return LoginResult{User: u, Tokens: tokens}, nil
}

func (s *Service) openSession(ctx context.Context, st storage.Store, u core.User, c Client) (Tokens, error) {
	rows, err := st.Insert(ctx, core.ResourceSessions.Table(), storage.Row{
		"user_id":            u.ID,
		"refresh_token_hash": "",
		"ip_address":         c.IP,
		"user_agent":         c.UserAgent,
		"expires_at":         s.now().Add(s.issuer.RefreshTTL()),
		"is_active":          true,
	})
	if err != nil {
		return Tokens{}, core.Store("create session", err)
	}
	return s.rotate(ctx, st, u, rows[0].String("id"))
}

// rotate issues a fresh pair for the session and stores the new refresh hash.
func (s *Service) rotate(ctx context.Context, st storage.Store, u core.User, sessionID string) (Tokens, error) {
	access, _, err := s.issuer.issue(u, sessionID, TypeAccess)
	if err != nil {
		return Tokens{}, err
	}
	refresh, exp, err := s.issuer.issue(u, sessionID, TypeRefresh)
	if err != nil {
		return Tokens{}, err
	}
	if _, err := st.Update(ctx, core.ResourceSessions.Table(), storage.Row{
		"refresh_token_hash": hashToken(refresh),
		"expires_at":         exp,
	}, storage.Eq("id", sessionID)); err != nil {
		return Tokens{}, core.Store("rotate session", err)
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// must be the latest one issued for its session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, core.Invalid("refresh_token", "is required")
	}
	claims, err := s.issuer.Parse(refreshToken, TypeRefresh)
	if err != nil {
		return Tokens{}, core.Unauthorized("Invalid refresh token")
	}

	var tokens Tokens
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		sess, err := s.activeSession(ctx, tx, claims.SessionID)
		if err != nil {
			return err
		}
		if sess.RefreshTokenHash != hashToken(refreshToken) || sess.UserID != claims.Subject {
			return core.Unauthorized("Invalid refresh token")
		}
		row, err := tx.Get(ctx, core.ResourceUsers.Table(), sess.UserID)
		if err != nil {
			return core.Unauthorized("Invalid refresh token")
		}
		u := services.ToUser(row)
		if !u.IsActive {
			return core.Unauthorized("Invalid refresh token")
		}
		tokens, err = s.rotate(ctx, tx, u, sess.ID)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

func (s *Service) activeSession(ctx context.Context, st storage.Store, id string) (core.Session, error) {
	if id == "" {
		return core.Session{}, core.Unauthorized("Invalid token")
	}
	row, err := st.Get(ctx, core.ResourceSessions.Table(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Session{}, core.Unauthorized("Session expired or revoked")
	}
	if err != nil {
		return core.Session{}, core.Store("get session", err)
	}
	sess := toSession(row)
	if !sess.IsActive || !sess.ExpiresAt.After(s.now()) {
		return core.Session{}, core.Unauthorized("Session expired or revoked")
	}
	return sess, nil
}

// Verify validates an access token and its session.
func (s *Service) Verify(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.issuer.Parse(accessToken, TypeAccess)
	if err != nil {
		return Principal{}, core.Unauthorized("Invalid token")
	}
	if _, err := s.activeSession(ctx, s.store, claims.SessionID); err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

func (s *Service) Logout(ctx context.Context, p Principal) error {
	if _, err := s.store.Update(ctx, core.ResourceSessions.Table(),
		storage.Row{"is_active": false}, storage.Eq("id", p.SessionID)); err != nil {
		return core.Store("logout", err)
	}
	s.logger.InfoContext(ctx, "User logged out", "user_id", p.UserID, "session_id", p.SessionID)
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (core.User, error) {
	return s.userByID(ctx, userID)
}

// Register creates a user. Only admins reach it through the API.
func (s *Service) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return core.User{}, core.Invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return core.User{}, core.Invalid("email", "must be a valid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return core.User{}, core.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if in.Role == "" {
		in.Role = core.RoleUser
	}
	if !in.Role.Valid() {
		return core.User{}, core.Invalid("role", "must be admin or user")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}

	var created core.User
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		n, err := tx.Count(ctx, core.ResourceUsers.Table(), storage.Eq("email", email))
		if err != nil {
			return core.Store("check email", err)
		}
		if n > 0 {
			return core.Conflict("User with this email already exists")
		}
		rows, err := tx.Insert(ctx, core.ResourceUsers.Table(), storage.Row{
			"email":      email,
			"password":   hash,
			"first_name": strings.TrimSpace(in.FirstName),
			"last_name":  strings.TrimSpace(in.LastName),
			"role":       string(in.Role),
			"is_active":  true,
		})
		if err != nil {
			return core.Store("insert user", err)
		}
		created = services.ToUser(rows[0])
		return nil
	})
	if err != nil {
		return core.User{}, fmt.Errorf("register: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered",
		log.NewFields().WithUser(created.ID, string(created.Role)).WithOperation(log.OpCreate).ToSlice()...)
	return created, nil
}

// EnsureAdmin creates the admin account or resets its password and role.
// It reports whether a new user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if len(password) < MinPasswordLength {
		return false, core.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	u, ok, err := s.userByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if !ok {
		_, err := s.Register(ctx, RegisterInput{
			Email:     email,
			Password:  password,
			FirstName: "Admin",
			LastName:  "User",
			Role:      core.RoleAdmin,
		})
		return err == nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := s.store.Update(ctx, core.ResourceUsers.Table(), storage.Row{
		"password":  hash,
		"role":      string(core.RoleAdmin),
		"is_active": true,
	}, storage.Eq("id", u.ID)); err != nil {
		return false, core.Store("update admin", err)
	}
	return false, nil
}

func (s *Service) ActiveSessions(ctx context.Context) ([]core.Session, error) {
	return s.sessions(ctx, storage.Eq("is_active", true), storage.Gt("expires_at", s.now()))
}

func (s *Service) UserSessions(ctx context.Context, userID string) ([]core.Session, error) {
	return s.sessions(ctx, storage.Eq("user_id", userID), storage.Eq("is_active", true), storage.Gt("expires_at", s.now()))
}

func (s *Service) sessions(ctx context.Context, filters ...storage.Filter) ([]core.Session, error) {
	rows, err := s.store.Select(ctx, core.ResourceSessions.Table(), storage.Query{
		Filters: filters,
		Order:   []storage.Order{storage.Desc("created_at")},
	})
	if err != nil {
		return nil, core.Store("list sessions", err)
	}
	out := make([]core.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSession(r))
	}
	return out, nil
}

func (s *Service) RevokeSession(ctx context.Context, id string) error {
	rows, err := s.store.Update(ctx, core.ResourceSessions.Table(),
		storage.Row{"is_active": false}, storage.Eq("id", id))
	if err != nil {
		return core.Store("revoke session", err)
	}
	if len(rows) == 0 {
		return core.NotFound("Session", id)
	}
	return nil
}

// RevokeAll deactivates every active session of the user and returns how
// many were revoked.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int, error) {
	rows, err := s.store.Update(ctx, core.ResourceSessions.Table(),
		storage.Row{"is_active": false},
		storage.Eq("user_id", userID), storage.Eq("is_active", true))
	if err != nil {
		return 0, core.Store("revoke sessions", err)
	}
	return len(rows), nil
}

func toSession(r storage.Row) core.Session {
	return core.Session{
		ID:               r.String("id"),
		UserID:           r.String("user_id"),
		RefreshTokenHash: r.String("refresh_token_hash"),
		IPAddress:        r.String("ip_address"),
		UserAgent:        r.String("user_agent"),
		ExpiresAt:        r.Time("expires_at"),
		IsActive:         r.Bool("is_active"),
		CreatedAt:        r.Time("created_at"),
	}
}
