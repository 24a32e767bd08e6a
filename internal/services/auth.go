package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vaxdash/internal/auth"
	"vaxdash/internal/config"
	"vaxdash/internal/models"
)

// ErrInvalidCredentials is returned for any failed login, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// RoleAdmin may trigger dataset reloads.
const RoleAdmin = "admin"

type AuthService struct {
	db   *bun.DB
	jwt  *auth.JWTManager
	cfg  *config.Config
	logr *zap.Logger
}

func NewAuthService(db *bun.DB, jwt *auth.JWTManager, cfg *config.Config, logr *zap.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cfg: cfg, logr: logr}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// LoginLocal authenticates an analyst against the stored bcrypt hash.
func (s *AuthService) LoginLocal(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var a models.Analyst
	err := s.db.NewSelect().Model(&a).Where("lower(email) = ?", strings.ToLower(email)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, fmt.Errorf("account not configured for local login")
	}
	if err := ComparePassword(a.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.touchLastLogin(ctx, &a)
	return s.issue(&a, "local")
}

// LoginLDAP binds with the service account, looks the user up under the
// configured base DN, then binds as that entry to check the password.
// Unknown analysts are provisioned without roles.
func (s *AuthService) LoginLDAP(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	ldap.DefaultTimeout = 10 * time.Second
	l, err := ldap.DialURL(s.cfg.LDAPServer)
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, fmt.Errorf("ldap connection failed")
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			s.logr.Debug("LDAP close error", zap.Error(closeErr))
		}
	}()
	l.SetTimeout(30 * time.Second)

	if s.cfg.LDAPBindDN != "" {
		if err := l.Bind(s.cfg.LDAPBindDN, s.cfg.LDAPBindPass); err != nil {
			s.logr.Error("LDAP service bind failed", zap.Error(err))
			return nil, fmt.Errorf("ldap service bind failed")
		}
	}

	filter := fmt.Sprintf("(|(uid=%[1]s)(sAMAccountName=%[1]s)(mail=%[1]s))", ldap.EscapeFilter(username))
	sr, err := l.Search(ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		[]string{"dn", "cn", "displayName", "mail"},
		nil,
	))
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("user lookup failed")
	}
	if len(sr.Entries) != 1 {
		s.logr.Warn("LDAP lookup ambiguous or empty", zap.String("username", username), zap.Int("entries", len(sr.Entries)))
		return nil, ErrInvalidCredentials
	}
	entry := sr.Entries[0]

	if err := l.Bind(entry.DN, password); err != nil {
		s.logr.Warn("LDAP bind failed", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	mail := entry.GetAttributeValue("mail")
	if mail == "" {
		return nil, fmt.Errorf("user account missing email")
	}
	name := entry.GetAttributeValue("displayName")
	if name == "" {
		name = entry.GetAttributeValue("cn")
	}

	a, err := s.provision(ctx, mail, name)
	if err != nil {
		return nil, err
	}
	s.touchLastLogin(ctx, a)

	s.logr.Info("LDAP login successful", zap.String("analyst_id", a.ID.String()), zap.String("email", mail))
	return s.issue(a, "ldap")
}

func (s *AuthService) provision(ctx context.Context, email, name string) (*models.Analyst, error) {
	var a models.Analyst
	err := s.db.NewSelect().Model(&a).Where("lower(email) = ?", strings.ToLower(email)).Scan(ctx)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logr.Error("Database error", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("database error")
	}

	a = models.Analyst{Email: email, Provider: "ldap", Name: name, Roles: []string{}, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(&a).Returning("id").Exec(ctx); err != nil {
		s.logr.Error("Failed to create analyst", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to create analyst account")
	}
	s.logr.Info("Created new LDAP analyst", zap.String("email", email), zap.String("id", a.ID.String()))
	return &a, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, a *models.Analyst) {
	now := time.Now().UTC()
	_, _ = s.db.NewUpdate().
		Model((*models.Analyst)(nil)).
		Set("last_login_at = ?", now).
		Where("id = ?", a.ID).
		Exec(ctx)
}

func (s *AuthService) issue(a *models.Analyst, method string) (*models.LoginResponse, error) {
	token, exp, err := s.jwt.IssueAccessToken(a.ID.String(), s.cfg.AccessTokenTTL, a.TokenVersion, method, a.Roles)
	if err != nil {
		s.logr.Error("Token generation failed", zap.Error(err), zap.String("analyst_id", a.ID.String()))
		return nil, fmt.Errorf("failed to generate token")
	}
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresAt:   exp,
		Analyst: &models.AnalystInfo{
			ID:       a.ID.String(),
			Email:    a.Email,
			Name:     a.Name,
			Provider: method,
			Roles:    a.Roles,
		},
	}, nil
}

// CheckTokenVersion reports whether the token was issued for the analyst's
// current token version. Bumping the version revokes outstanding tokens.
func (s *AuthService) CheckTokenVersion(ctx context.Context, analystID string, tokenVersion int) (bool, error) {
	var a models.Analyst
	err := s.db.NewSelect().Model(&a).Column("token_version").Where("id = ?", analystID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return a.TokenVersion == tokenVersion, nil
}
