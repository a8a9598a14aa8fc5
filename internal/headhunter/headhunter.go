// Package headhunter is the authenticated client for the hh.ru REST API.
// Every call resolves the subject's access token through the token manager,
// classifies failures into auth, API and network errors, and retries
// idempotent reads with bounded backoff.
package headhunter

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/retry"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/hh-coverbot (spigelly@gmail.com)"
	// Max value for per_page accepted by the API.
	perPage = "100"

	// defaultPageTimeout bounds one negotiations page fetch. Hitting it is
	// treated as "no more data", not as a failure: the total count behind the
	// pagination is not deterministic and we refuse to chase it forever.
	defaultPageTimeout = 10 * time.Second
)

// TokenSource yields a valid access token for a subject. Implemented by
// token.Manager.
type TokenSource interface {
	EnsureAccess(ctx context.Context, subject string) (string, error)
}

type Client struct {
	tokens  TokenSource
	subject string
	logger  *zap.Logger

	HTTPClient  *http.Client
	UserAgent   string
	APIURL      string
	PageTimeout time.Duration

	policy retry.Policy
}

// New builds a client acting on behalf of one subject.
func New(tokens TokenSource, subject string, logger *zap.Logger) *Client {
	return &Client{
		tokens:  tokens,
		subject: subject,
		logger:  logger,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		UserAgent:   userAgent,
		APIURL:      apiURL,
		PageTimeout: defaultPageTimeout,
		policy:      retry.Default(errs.Retryable),
	}
}

// Subject returns the platform user id this client acts for.
func (c *Client) Subject() string { return c.subject }
