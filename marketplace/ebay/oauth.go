package ebay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// browseScope is the public scope application tokens are minted for.
const browseScope = "https://api.ebay.com/oauth/api_scope"

func endpoint(mc config.Marketplace) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   strings.TrimRight(mc.AuthBaseURL, "/") + "/oauth2/authorize",
		TokenURL:  strings.TrimRight(mc.APIBaseURL, "/") + "/identity/v1/oauth2/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// AppTokenSource returns a cached client-credentials token source for the
// Browse API.
func AppTokenSource(ctx context.Context, mc config.Marketplace) oauth2.TokenSource {
	cc := &clientcredentials.Config{
		ClientID:     mc.ClientID,
		ClientSecret: mc.ClientSecret,
		TokenURL:     endpoint(mc).TokenURL,
		Scopes:       []string{browseScope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cc.TokenSource(ctx)
}

// UserTokenSupplier hands out seller access tokens, refreshing them through
// the stored refresh token and persisting the result.
type UserTokenSupplier struct {
	oauth  *oauth2.Config
	store  storage.TokenStore
	logger *utils.Logger
}

var _ marketplace.TokenSupplier = (*UserTokenSupplier)(nil)

func NewUserTokenSupplier(mc config.Marketplace, store storage.TokenStore, logger *utils.Logger) *UserTokenSupplier {
	return &UserTokenSupplier{
		oauth: &oauth2.Config{
			ClientID:     mc.ClientID,
			ClientSecret: mc.ClientSecret,
			RedirectURL:  mc.RedirectURI,
			Scopes:       mc.Scopes,
			Endpoint:     endpoint(mc),
		},
		store:  store,
		logger: logger,
	}
}

// AuthCodeURL is where a seller grants access. state is echoed back to the
// redirect URI.
func (s *UserTokenSupplier) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and stores them for
// userID.
func (s *UserTokenSupplier) Exchange(ctx context.Context, userID, code string) error {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("ebay: exchange code: %w", err)
	}
	if err := s.store.SaveToken(ctx, userID, tok); err != nil {
		return fmt.Errorf("ebay: save token: %w", err)
	}
	s.logger.Info("[oauth] Connected marketplace account for %s", userID)
	return nil
}

// Disconnect forgets the user's tokens.
func (s *UserTokenSupplier) Disconnect(ctx context.Context, userID string) error {
	return s.store.DeleteToken(ctx, userID)
}

// Token implements marketplace.TokenSupplier. A missing token or a refresh
// the server rejects reports ErrNotConnected.
func (s *UserTokenSupplier) Token(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", marketplace.ErrNotConnected
	}
	stored, err := s.store.LoadToken(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", marketplace.ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("ebay: load token: %w", err)
	}
	if !stored.Valid() && stored.RefreshToken == "" {
		return "", marketplace.ErrNotConnected
	}

	fresh, err := s.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			s.logger.Warn("[oauth] Refresh rejected for %s: %v", userID, err)
			return "", fmt.Errorf("%w: %v", marketplace.ErrNotConnected, err)
		}
		return "", fmt.Errorf("ebay: refresh token: %w", err)
	}

	if fresh.AccessToken != stored.AccessToken {
		if err := s.store.SaveToken(ctx, userID, fresh); err != nil {
			s.logger.Warn("[oauth] Saving refreshed token for %s failed: %v", userID, err)
		}
	}
	return fresh.AccessToken, nil
}
