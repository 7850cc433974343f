package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewHTTPClient returns the transport used for backend calls. When auth is
// enabled it discovers the issuer's token endpoint and returns a client that
// attaches client-credentials bearer tokens, refreshing them as they expire.
func NewHTTPClient(ctx context.Context, cfg *Config) (*http.Client, error) {
	base := &http.Client{Timeout: cfg.TimeoutDuration()}
	if !cfg.Auth.Enabled() {
		return base, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", cfg.Auth.Issuer, err)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
		Scopes:       cfg.Auth.Scopes,
	}

	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = base.Timeout
	return client, nil
}
