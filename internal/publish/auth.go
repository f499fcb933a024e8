package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"stlpipe/internal/config"
	"stlpipe/internal/fileutil"
	"stlpipe/internal/services"
)

// HTTPClient returns an authenticated client for the configured
// gdrive.auth_method.
func HTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	switch strings.ToLower(cfg.GDrive.AuthMethod) {
	case "service_account":
		data, err := os.ReadFile(cfg.GDrive.CredentialsFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "gdrive", "read service account key", cfg.GDrive.CredentialsFile, err)
		}
		jwt, err := google.JWTConfigFromJSON(data, drive.DriveFileScope)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "gdrive", "parse service account key", "", err)
		}
		return jwt.Client(ctx), nil
	default:
		conf, err := OAuthConfig(cfg)
		if err != nil {
			return nil, err
		}
		token, err := LoadToken(cfg.GDrive.TokenFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "gdrive", "load token",
				"run `stlpipe drive auth` first", err)
		}
		source := &persistingTokenSource{
			base: conf.TokenSource(ctx, token),
			path: cfg.GDrive.TokenFile,
			last: token,
		}
		return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
	}
}

// OAuthConfig parses the OAuth client secrets file.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	data, err := os.ReadFile(cfg.GDrive.CredentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gdrive", "read client secrets", cfg.GDrive.CredentialsFile, err)
	}
	conf, err := google.ConfigFromJSON(data, drive.DriveFileScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gdrive", "parse client secrets", "", err)
	}
	return conf, nil
}

// AuthURL returns the consent URL the user must open once.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for a token and stores it.
func ExchangeCode(ctx context.Context, conf *oauth2.Config, code, tokenFile string) error {
	token, err := conf.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return SaveToken(tokenFile, token)
}

// LoadToken reads a cached OAuth token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, errors.New("token file holds no credentials")
	}
	return &token, nil
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o600)
}

// persistingTokenSource writes refreshed tokens back to the cache file.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.AccessToken != token.AccessToken {
		s.last = token
		_ = SaveToken(s.path, token)
	}
	return token, nil
}
