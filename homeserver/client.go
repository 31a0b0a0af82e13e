package homeserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-account-settings/core"
	"github.com/goliatone/go-account-settings/identity"
	"github.com/goliatone/go-account-settings/transport"
	goerrors "github.com/goliatone/go-errors"
)

const (
	passwordPath          = "/_matrix/client/v3/account/password"
	threePIDPath          = "/_matrix/client/v3/account/3pid"
	acceptedTermsType     = "m.accepted_terms"
	loginTypePassword     = "m.login.password"
	identifierTypeUser    = "m.id.user"
	defaultRequestTimeout = 30 * time.Second
)

var (
	ErrBaseURLRequired     = errors.New("homeserver: base url is required")
	ErrAccessTokenRequired = errors.New("homeserver: access token is required")
)

type Config struct {
	BaseURL        string
	AccessToken    string
	UserID         string
	HTTPClient     transport.HTTPDoer
	Adapter        *transport.RESTAdapter
	RequestTimeout time.Duration
}

// Client is the slice of the Matrix client-server API the account settings
// screens need.
type Client struct {
	baseURL     string
	accessToken string
	userID      string
	adapter     *transport.RESTAdapter
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrAccessTokenRequired
	}
	adapter := cfg.Adapter
	if adapter == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		adapter = transport.NewRESTAdapterFromConfig(cfg.HTTPClient, timeout, 0)
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: strings.TrimSpace(cfg.AccessToken),
		userID:      strings.TrimSpace(cfg.UserID),
		adapter:     adapter,
	}, nil
}

func (c *Client) UserID() string {
	return c.userID
}

type passwordRequest struct {
	NewPassword   string    `json:"new_password"`
	LogoutDevices bool      `json:"logout_devices"`
	Auth          *authData `json:"auth,omitempty"`
}

type authData struct {
	Type       string          `json:"type"`
	Session    string          `json:"session,omitempty"`
	Identifier *userIdentifier `json:"identifier,omitempty"`
	Password   string          `json:"password,omitempty"`
}

type userIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// interactiveAuth is the 401 body a homeserver returns when a request needs
// user-interactive authentication.
type interactiveAuth struct {
	Session string `json:"session"`
	Flows   []struct {
		Stages []string `json:"stages"`
	} `json:"flows"`
	Completed []string `json:"completed"`
	ErrCode   string   `json:"errcode"`
}

func (a interactiveAuth) supportsPassword() bool {
	for _, flow := range a.Flows {
		if len(flow.Stages) == 1 && flow.Stages[0] == loginTypePassword {
			return true
		}
	}
	return false
}

// ChangeCredential changes the account password. The first request opens a
// user-interactive auth session; the second completes the m.login.password
// stage with the current password.
func (c *Client) ChangeCredential(ctx context.Context, oldSecret string, newSecret string, invalidateOtherSessions bool) error {
	if c.userID == "" {
		return goerrors.New("homeserver: user id is required for password change", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.SettingsErrorBadInput)
	}
	body := passwordRequest{NewPassword: newSecret, LogoutDevices: invalidateOtherSessions}

	res, err := c.postPassword(ctx, body)
	if err == nil {
		return nil
	}
	if res.StatusCode != http.StatusUnauthorized {
		return err
	}
	var flow interactiveAuth
	if jsonErr := json.Unmarshal(res.Body, &flow); jsonErr != nil || flow.Session == "" || flow.ErrCode != "" {
		return err
	}
	if !flow.supportsPassword() {
		return goerrors.New("homeserver: password authentication is not offered", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.MatrixErrorUnrecognized)
	}

	body.Auth = &authData{
		Type:       loginTypePassword,
		Session:    flow.Session,
		Identifier: &userIdentifier{Type: identifierTypeUser, User: c.userID},
		Password:   oldSecret,
	}
	_, err = c.postPassword(ctx, body)
	return err
}

func (c *Client) postPassword(ctx context.Context, body passwordRequest) (transport.Response, error) {
	return transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodPost,
		URL:         transport.JoinURL(c.baseURL, passwordPath),
		AccessToken: c.accessToken,
	}, body, nil)
}

type threePIDResponse struct {
	ThreePIDs []struct {
		Medium      string `json:"medium"`
		Address     string `json:"address"`
		ValidatedAt int64  `json:"validated_at"`
		AddedAt     int64  `json:"added_at"`
	} `json:"threepids"`
}

// ListIdentifiers returns the third-party identifiers bound to the account
// owning the access token, in server order.
func (c *Client) ListIdentifiers(ctx context.Context, userID string) ([]core.ThirdPartyIdentifier, error) {
	if userID = strings.TrimSpace(userID); userID != "" && c.userID != "" && userID != c.userID {
		return nil, goerrors.New("homeserver: identifiers can only be listed for the signed-in user", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(core.SettingsErrorForbidden)
	}
	var body threePIDResponse
	if _, err := transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodGet,
		URL:         transport.JoinURL(c.baseURL, threePIDPath),
		AccessToken: c.accessToken,
	}, nil, &body); err != nil {
		return nil, err
	}
	out := make([]core.ThirdPartyIdentifier, 0, len(body.ThreePIDs))
	for _, entry := range body.ThreePIDs {
		out = append(out, core.ThirdPartyIdentifier{
			Medium:  core.Medium(entry.Medium).Normalize(),
			Address: entry.Address,
		})
	}
	return out, nil
}

type acceptedTermsContent struct {
	Accepted []string `json:"accepted"`
}

// AcceptedTermsURLs reads the m.accepted_terms account data. A missing entry
// means nothing was accepted yet.
func (c *Client) AcceptedTermsURLs(ctx context.Context) ([]string, error) {
	endpoint, err := c.accountDataURL(acceptedTermsType)
	if err != nil {
		return nil, err
	}
	var content acceptedTermsContent
	_, err = transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodGet,
		URL:         endpoint,
		AccessToken: c.accessToken,
	}, nil, &content)
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.TextCode == core.MatrixErrorNotFound {
			return nil, nil
		}
		return nil, err
	}
	return content.Accepted, nil
}

// RecordAcceptedTerms adds urls to the m.accepted_terms account data,
// keeping what was already there.
func (c *Client) RecordAcceptedTerms(ctx context.Context, urls []string) error {
	current, err := c.AcceptedTermsURLs(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(current)+len(urls))
	merged := make([]string, 0, len(current)+len(urls))
	for _, value := range append(current, urls...) {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		merged = append(merged, value)
	}

	endpoint, err := c.accountDataURL(acceptedTermsType)
	if err != nil {
		return err
	}
	_, err = transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodPut,
		URL:         endpoint,
		AccessToken: c.accessToken,
	}, acceptedTermsContent{Accepted: merged}, nil)
	return err
}

func (c *Client) accountDataURL(eventType string) (string, error) {
	if c.userID == "" {
		return "", goerrors.New("homeserver: user id is required for account data", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.SettingsErrorBadInput)
	}
	path := "/_matrix/client/v3/user/" + url.PathEscape(c.userID) + "/account_data/" + url.PathEscape(eventType)
	return transport.JoinURL(c.baseURL, path), nil
}

var (
	_ core.CredentialChangeClient  = (*Client)(nil)
	_ core.IdentifierSource        = (*Client)(nil)
	_ identity.AcceptedTermsSource = (*Client)(nil)
)
