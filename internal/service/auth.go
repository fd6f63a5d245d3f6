// Package service contains the reference backend's application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/bookshelf/internal/clock"
	pkgcrypto "github.com/and161185/bookshelf/internal/crypto"
	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/limiter"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/repository"
)

// Principal is the verified identity behind a bearer token.
type Principal struct {
	Subject  string
	Username string
	Roles    []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthService defines the development identity provider.
type AuthService interface {
	// Register creates a new account with an Argon2id password hash.
	Register(ctx context.Context, username, password string, roles ...string) (userID string, err error)
	// PasswordGrant applies rate limiting, checks credentials and issues an access token.
	PasswordGrant(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error)
	// Verify checks signature and expiry of an access token.
	Verify(token string) (Principal, error)
}

// accessClaims is the token layout clients decode: sub, preferred_username, realm_access.roles, exp.
type accessClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username,omitempty"`
	RealmAccess       realmAccess `json:"realm_access"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	issuer    string
	lim       limiter.Limiter
	clock     clock.Clock
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, issuer string, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:     users,
		signKey:   signKey,
		accessTTL: accessTTL,
		issuer:    issuer,
		lim:       lim,
		clock:     clock.New(),
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string, roles ...string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", errs.New(errs.KindValidation, "invalid account", "username and password are required")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, salt, err := pkgcrypto.NewHash(password)
	if err != nil {
		return "", err
	}
	u := &model.User{
		ID:        uid,
		Username:  username,
		PwdHash:   hash,
		Salt:      salt,
		Roles:     roles,
		CreatedAt: s.clock.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// SeedAdmin registers "user:password" with the admin role unless the account exists.
func (s *AuthServiceImpl) SeedAdmin(ctx context.Context, cred, role string) error {
	user, pass, ok := strings.Cut(cred, ":")
	if !ok || user == "" || pass == "" {
		return fmt.Errorf("seed admin: want user:password")
	}
	_, err := s.Register(ctx, user, pass, role)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil
	}
	return err
}

// PasswordGrant authenticates with rate limiting by (username, ip).
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) PasswordGrant(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.Salt, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, username, ipHash)

	access, exp, err := s.issueAccessToken(u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the user.
func (s *AuthServiceImpl) issueAccessToken(u *model.User) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(s.accessTTL)
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		PreferredUsername: u.Username,
		RealmAccess:       realmAccess{Roles: roles},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	return signed, exp, err
}

// Verify parses token and returns its principal; any failure is ErrUnauthorized.
func (s *AuthServiceImpl) Verify(token string) (Principal, error) {
	var c accessClaims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	return Principal{Subject: c.Subject, Username: c.PreferredUsername, Roles: c.RealmAccess.Roles}, nil
}
