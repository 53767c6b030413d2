package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/auth"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type UserConfig struct {
	JWTSecret                    []byte
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	// AdminEmail registers as admin; everyone else picks student or lecturer.
	AdminEmail string
}

// UserService handles registration, login and token rotation. Every new
// user gets an empty wallet in the same unit of work.
type UserService struct {
	d   Deps
	cfg UserConfig
}

func NewUserService(d Deps, cfg UserConfig) *UserService {
	d.defaults()
	return &UserService{d: d, cfg: cfg}
}

func (s *UserService) Register(ctx context.Context, email, password, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, common.Validation("invalid email address")
	}

	r, err := s.roleFor(email, role)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, outcome(err)
	}

	var user *models.User
	err = s.d.Tx.Do(ctx, "register", func(ctx context.Context, repos *uow.Repos) error {
		u, err := repos.Users.Create(ctx, &models.User{Email: email, PasswordHash: hash, Role: r.Name})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.NewError(common.KindConflict, "email already registered", err)
		}
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		w := &models.Wallet{
			ID:       uuid.NewString(),
			UserID:   u.ID,
			Balance:  decimal.Zero,
			Currency: s.d.Currency,
			Version:  1,
		}
		if err := repos.Wallets.Create(ctx, w); err != nil {
			return fmt.Errorf("error creating wallet: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, outcome(err)
	}
	return user, nil
}

func (s *UserService) roleFor(email, role string) (access.Role, error) {
	if s.cfg.AdminEmail != "" && email == strings.ToLower(s.cfg.AdminEmail) {
		return access.Admin, nil
	}
	if role == "" {
		return access.Student, nil
	}
	r, err := access.RoleByName(role)
	if err != nil {
		return access.Role{}, common.Validation(err.Error())
	}
	if r.Name == access.Admin.Name {
		return access.Role{}, common.Forbidden("admin accounts cannot self-register")
	}
	return r, nil
}

// Login verifies credentials and returns a new TokenPair. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var pair *TokenPair
	err := s.d.Tx.Do(ctx, "login", func(ctx context.Context, repos *uow.Repos) error {
		user, err := repos.Users.GetByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			return common.Unauthorized("invalid credentials")
		}
		if err != nil {
			return err
		}
		if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
			return common.Unauthorized("invalid credentials")
		}
		pair, err = s.generateTokenPair(ctx, repos, user)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return pair, nil
}

// RefreshToken validates a refresh token, rotates it and returns a fresh
// TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.d.Tx.Do(ctx, "refresh_token", func(ctx context.Context, repos *uow.Repos) error {
		token, err := repos.RefreshTokens.Find(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.KindUnauthorized, "unknown refresh token", common.ErrInvalidToken)
		}
		if err != nil {
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if token.Expires.Before(s.d.Now()) {
			return common.NewError(common.KindUnauthorized, "refresh token expired", common.ErrRefreshTokenExpired)
		}
		if err := repos.RefreshTokens.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		user, err := repos.Users.GetByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		pair, err = s.generateTokenPair(ctx, repos, user)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return pair, nil
}

// Authenticate turns an access token into a principal.
func (s *UserService) Authenticate(_ context.Context, accessToken string) (*access.Principal, error) {
	claims, err := auth.ParseToken(accessToken, s.cfg.JWTSecret)
	if err != nil {
		return nil, common.NewError(common.KindUnauthorized, "invalid access token", err)
	}
	role, err := access.RoleByName(claims.Role)
	if err != nil {
		return nil, common.NewError(common.KindUnauthorized, "invalid access token", common.ErrInvalidToken)
	}
	return &access.Principal{UserID: claims.UserID, Role: role}, nil
}

// Email resolves a user's address for notifications.
func (s *UserService) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.d.Tx.Do(ctx, "user_email", func(ctx context.Context, repos *uow.Repos) error {
		u, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		email = u.Email
		return nil
	})
	return email, err
}

// PurgeExpiredTokens removes refresh tokens past their expiry.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	var n int64
	err := s.d.Tx.Do(ctx, "purge_refresh_tokens", func(ctx context.Context, repos *uow.Repos) error {
		var err error
		n, err = repos.RefreshTokens.DeleteExpired(ctx, s.d.Now())
		return err
	})
	return n, err
}

func (s *UserService) generateTokenPair(ctx context.Context, repos *uow.Repos, user *models.User) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Role, s.cfg.JWTSecret, s.cfg.AccessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	expires := s.d.Now().Add(s.cfg.RefreshTokenValidityDuration)
	if err := repos.RefreshTokens.Create(ctx, user.ID, refresh, expires); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refresh}, nil
}
