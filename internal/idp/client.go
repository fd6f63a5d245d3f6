// Package idp talks to the identity provider's token endpoint (resource owner password grant).
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/and161185/bookshelf/internal/errs"
)

// Config locates the realm token endpoint.
type Config struct {
	URL      string // e.g. http://localhost:8880
	Realm    string
	ClientID string
}

// TokenURL returns {url}/realms/{realm}/protocol/openid-connect/token.
func (c Config) TokenURL() string {
	return strings.TrimRight(c.URL, "/") + "/realms/" + c.Realm + "/protocol/openid-connect/token"
}

// Client performs password grants.
type Client struct {
	oauth2 oauth2.Config
	hc     *http.Client
	log    *zap.Logger
}

// New builds a client; hc may be nil for http.DefaultClient.
func New(cfg Config, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		oauth2: oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		hc:  hc,
		log: log.Named("idp"),
	}
}

// PasswordToken exchanges credentials for an access token.
// Refusals come back as errs.KindLoginFailure carrying the provider's reason.
func (c *Client) PasswordToken(ctx context.Context, username, password string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	tok, err := c.oauth2.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return "", c.classify(err)
	}
	return tok.AccessToken, nil
}

func (c *Client) classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		reason := re.ErrorDescription
		if reason == "" {
			reason = re.ErrorCode
		}
		if reason == "" {
			reason = "login failed"
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		c.log.Debug("token request refused", zap.Int("status", status), zap.String("code", re.ErrorCode))
		return &errs.Error{Kind: errs.KindLoginFailure, Status: status, Message: reason}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.log.Warn("token request failed", zap.Error(err))
	return &errs.Error{Kind: errs.KindUnreachable, Message: "identity provider unreachable", Err: fmt.Errorf("token: %w", err)}
}
