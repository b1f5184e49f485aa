package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"

	"pkt.systems/todosync/schema"
)

// DefaultAuthority is the multi-tenant Microsoft identity platform authority.
const DefaultAuthority = "https://login.microsoftonline.com/common"

// DefaultScopes are the delegated Graph permissions the app requests.
var DefaultScopes = []string{"Notes.ReadWrite", "User.Read"}

// Token is a freshly acquired access token and the account it belongs to.
type Token struct {
	AccessToken string
	Account     schema.Account
}

// Acquirer performs token acquisition against the identity provider. The
// accessor brackets every access to the library's token cache.
type Acquirer interface {
	AcquireSilent(ctx context.Context, accessor cache.ExportReplace, identity schema.Identity) (Token, error)
	RedeemCode(ctx context.Context, accessor cache.ExportReplace, code string) (Token, error)
	AuthCodeURL(ctx context.Context, state string) (string, error)
}

// ClientConfig configures the MSAL confidential client.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	Authority    string
	RedirectURL  string
	Scopes       []string
}

// MSAL acquires tokens with a confidential client built per call, so the
// token cache accessor can differ for every identity.
type MSAL struct {
	cfg  ClientConfig
	cred confidential.Credential
}

var _ Acquirer = (*MSAL)(nil)

// NewMSAL validates cfg and prepares the client credential.
func NewMSAL(cfg ClientConfig) (*MSAL, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Authority = strings.TrimSpace(cfg.Authority)
	cfg.RedirectURL = strings.TrimSpace(cfg.RedirectURL)
	if cfg.ClientID == "" {
		return nil, errors.New("oauth client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("oauth client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("oauth redirect url is required")
	}
	if cfg.Authority == "" {
		cfg.Authority = DefaultAuthority
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append([]string(nil), DefaultScopes...)
	}
	cred, err := confidential.NewCredFromSecret(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("oauth credential: %w", err)
	}
	return &MSAL{cfg: cfg, cred: cred}, nil
}

func (m *MSAL) client(accessor cache.ExportReplace) (confidential.Client, error) {
	opts := []confidential.Option{}
	if accessor != nil {
		opts = append(opts, confidential.WithCache(accessor))
	}
	return confidential.New(m.cfg.Authority, m.cfg.ClientID, m.cred, opts...)
}

// AcquireSilent implements Acquirer.
func (m *MSAL) AcquireSilent(ctx context.Context, accessor cache.ExportReplace, identity schema.Identity) (Token, error) {
	client, err := m.client(accessor)
	if err != nil {
		return Token{}, err
	}
	account, err := client.Account(ctx, string(identity))
	if err != nil {
		return Token{}, err
	}
	if account.HomeAccountID == "" {
		return Token{}, errors.New("no cached account")
	}
	result, err := client.AcquireTokenSilent(ctx, m.cfg.Scopes, confidential.WithSilentAccount(account))
	if err != nil {
		return Token{}, err
	}
	return tokenFromResult(result), nil
}

// RedeemCode implements Acquirer.
func (m *MSAL) RedeemCode(ctx context.Context, accessor cache.ExportReplace, code string) (Token, error) {
	client, err := m.client(accessor)
	if err != nil {
		return Token{}, err
	}
	result, err := client.AcquireTokenByAuthCode(ctx, code, m.cfg.RedirectURL, m.cfg.Scopes)
	if err != nil {
		return Token{}, err
	}
	return tokenFromResult(result), nil
}

// AuthCodeURL implements Acquirer.
func (m *MSAL) AuthCodeURL(ctx context.Context, state string) (string, error) {
	client, err := m.client(nil)
	if err != nil {
		return "", err
	}
	raw, err := client.AuthCodeURL(ctx, m.cfg.ClientID, m.cfg.RedirectURL, m.cfg.Scopes)
	if err != nil {
		return "", err
	}
	return withState(raw, state)
}

func withState(raw, state string) (string, error) {
	if state == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func tokenFromResult(result confidential.AuthResult) Token {
	return Token{
		AccessToken: result.AccessToken,
		Account: schema.Account{
			Identity: schema.Identity(result.Account.HomeAccountID),
			Username: result.Account.PreferredUsername,
		},
	}
}
