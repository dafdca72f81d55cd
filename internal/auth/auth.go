// Package auth issues and verifies the API's tokens: short-lived HS256
// access tokens plus opaque refresh tokens held in redis. Logout
// blacklists both so a stolen pair dies with the session.
package auth

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/internal/config"
	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour

	refreshPrefix        = "refresh:"
	accessBlacklistKey   = "blacklist:access:"
	refreshBlacklistKey  = "blacklist:refresh:"
	blacklistPlaceholder = "1"
)

// TokenKV is the key-value capability the session store needs.
type TokenKV interface {
	Fetch(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
}

// Auth owns token issuance, verification and revocation.
type Auth struct {
	secret []byte
	cfg    *config.Config
	kv     TokenKV
	users  *datastore.UserRepository
	log    *logger.Logger
	now    func() time.Time
}

func New(cfg *config.Config, kv TokenKV, users *datastore.UserRepository, log *logger.Logger) *Auth {
	return &Auth{
		secret: []byte(cfg.JWTSecret),
		cfg:    cfg,
		kv:     kv,
		users:  users,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TokenPair is what login, register and refresh hand to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// IssueTokens mints an access token and a fresh refresh token for the user.
func (a *Auth) IssueTokens(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	access, err := a.generateAccess(userID.String())
	if err != nil {
		a.log.Error(ctx).WithFields("error", err, "user_id", userID).Logs("access token generation failed")
		return nil, utils.NewError(utils.CodeInternal, "Could not create session")
	}

	refresh := uuid.NewString()
	if err := a.kv.Store(ctx, refreshPrefix+refresh, userID.String(), refreshTTL); err != nil {
		a.log.Error(ctx).WithFields("error", err, "user_id", userID).Logs("refresh token store failed")
		return nil, utils.NewError(utils.CodeInternal, "Could not create session")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token into a new token pair. The old
// refresh token is consumed whether or not rotation succeeds.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, utils.NewError(utils.CodeAuthRequired, "Refresh token required")
	}
	if a.blacklisted(ctx, refreshBlacklistKey+refreshToken) {
		return nil, utils.NewError(utils.CodeAuthRequired, "Refresh token has been revoked")
	}

	key := refreshPrefix + refreshToken
	raw, ok, err := a.kv.Fetch(ctx, key)
	if err != nil {
		a.log.Error(ctx).WithFields("error", err).Logs("refresh token lookup failed")
		return nil, utils.NewError(utils.CodeUnavailable, "Session store is unavailable")
	}
	if !ok {
		return nil, utils.NewError(utils.CodeAuthRequired, "Invalid or expired refresh token")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, utils.NewError(utils.CodeAuthRequired, "Invalid or expired refresh token")
	}

	// The token must die with the account.
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = a.kv.Remove(ctx, key)
		return nil, utils.NewError(utils.CodeAuthRequired, "Invalid or expired refresh token")
	}

	if err := a.kv.Remove(ctx, key); err != nil {
		a.log.Warn(ctx).WithFields("error", err).Logs("spent refresh token removal failed")
	}
	return a.IssueTokens(ctx, userID)
}

// Revoke blacklists the session's tokens. Used by logout and account
// deletion; safe to call with either token empty.
func (a *Auth) Revoke(ctx context.Context, accessToken, refreshToken string) {
	if accessToken != "" {
		if err := a.kv.Store(ctx, accessBlacklistKey+accessToken, blacklistPlaceholder, accessTTL); err != nil {
			a.log.Warn(ctx).WithFields("error", err).Logs("access token blacklist failed")
		}
	}
	if refreshToken != "" {
		if err := a.kv.Store(ctx, refreshBlacklistKey+refreshToken, blacklistPlaceholder, refreshTTL); err != nil {
			a.log.Warn(ctx).WithFields("error", err).Logs("refresh token blacklist failed")
		}
		if err := a.kv.Remove(ctx, refreshPrefix+refreshToken); err != nil {
			a.log.Warn(ctx).WithFields("error", err).Logs("refresh token removal failed")
		}
	}
}

func (a *Auth) blacklisted(ctx context.Context, key string) bool {
	_, ok, err := a.kv.Fetch(ctx, key)
	if err != nil {
		// Redis being down must not lock every user out.
		a.log.Warn(ctx).WithFields("error", err).Logs("blacklist check failed")
		return false
	}
	return ok
}
