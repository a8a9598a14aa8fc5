package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/retry"
)

const (
	defaultAuthorizeURL = "https://hh.ru/oauth/authorize"
	defaultTokenURL     = "https://api.hh.ru/token"

	// Access tokens within this margin of expiry are refreshed proactively,
	// so a request never leaves with a token about to die in flight.
	defaultRefreshMargin = time.Minute
)

// OAuthConfig is the static part of the authorization-code grant.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	UserAgent    string
}

// Manager drives the OAuth2 dance and keeps exactly one valid token pair per
// subject in the underlying store.
type Manager struct {
	cfg    OAuthConfig
	store  Store
	logger *zap.Logger

	HTTPClient *http.Client

	policy retry.Policy
	margin time.Duration
	now    func() time.Time
}

func NewManager(cfg OAuthConfig, store Store, logger *zap.Logger) *Manager {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = defaultAuthorizeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}

	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		policy: retry.Default(retryableExchange),
		margin: defaultRefreshMargin,
		now:    time.Now,
	}
}

// retryableExchange allows retries on transport failures only. A 4xx from the
// token endpoint means a bad code or bad credentials and must reach the user.
func retryableExchange(err error) bool {
	var netErr *errs.NetworkError
	return errors.As(err, &netErr)
}

// AuthorizationURL builds the URL the user opens to grant access. The state is
// passed through opaque; pair it with SignedState to protect the callback.
func (m *Manager) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", m.cfg.ClientID)
	params.Set("redirect_uri", m.cfg.RedirectURI)
	params.Set("state", state)

	return fmt.Sprintf("%s?%s", m.cfg.AuthorizeURL, params.Encode())
}

// ExchangeCode trades an authorization code for a token pair. Nothing is
// persisted here; the caller decides which subject owns the pair.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*entity.AuthTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", m.cfg.ClientID)
	data.Set("client_secret", m.cfg.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", m.cfg.RedirectURI)

	return m.postToken(ctx, data)
}

// SaveTokens persists the pair for the subject, overwriting any prior one.
func (m *Manager) SaveTokens(ctx context.Context, subject string, tokens *entity.AuthTokens) error {
	return m.store.Set(ctx, subject, tokens)
}

// EnsureAccess returns a valid access token for the subject. A fresh stored
// token is returned without any network I/O. A stale one is refreshed and
// re-persisted first. When no usable token can be produced the caller gets
// ErrAuthRequired and must restart the full authorization.
func (m *Manager) EnsureAccess(ctx context.Context, subject string) (string, error) {
	tokens, err := m.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.ErrAuthRequired
		}
		return "", err
	}

	if !tokens.Expired(m.now(), m.margin) {
		return tokens.AccessToken, nil
	}

	if tokens.RefreshToken == "" {
		return "", errs.ErrAuthRequired
	}

	refreshed, err := m.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed, full authorization required",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return "", errs.ErrAuthRequired
	}

	if err := m.store.Set(ctx, subject, refreshed); err != nil {
		return "", err
	}

	return refreshed.AccessToken, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (*entity.AuthTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", m.cfg.ClientID)
	data.Set("client_secret", m.cfg.ClientSecret)

	return m.postToken(ctx, data)
}

func (m *Manager) postToken(ctx context.Context, data url.Values) (*entity.AuthTokens, error) {
	var tokens *entity.AuthTokens

	err := m.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if m.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", m.cfg.UserAgent)
		}

		resp, err := m.HTTPClient.Do(req)
		if err != nil {
			return &errs.NetworkError{Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &errs.NetworkError{Err: err}
		}

		if resp.StatusCode != http.StatusOK {
			return &errs.AuthExchangeError{Status: resp.StatusCode, Body: string(body)}
		}

		tokens, err = m.tokensFromPayload(body)

		return err
	})
	if err != nil {
		return nil, err
	}

	return tokens, nil
}

func (m *Manager) tokensFromPayload(body []byte) (*entity.AuthTokens, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	return &entity.AuthTokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
		ExpiresAt:    m.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
