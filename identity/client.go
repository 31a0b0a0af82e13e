package identity

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-account-settings/core"
	"github.com/goliatone/go-account-settings/transport"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

const (
	termsPath             = "/_matrix/identity/v2/terms"
	accountPath           = "/_matrix/identity/v2/account"
	defaultRequestTimeout = 30 * time.Second
)

var ErrBaseURLRequired = errors.New("identity: base url is required")

// AcceptedTermsSource reports the policy document URLs the user has already
// accepted. The homeserver stores them in the m.accepted_terms account data.
type AcceptedTermsSource interface {
	AcceptedTermsURLs(ctx context.Context) ([]string, error)
}

type Config struct {
	BaseURL        string
	AccessToken    string
	HTTPClient     transport.HTTPDoer
	Adapter        *transport.RESTAdapter
	RequestTimeout time.Duration
	AcceptedTerms  AcceptedTermsSource
}

// Client talks to a Matrix identity server and implements
// core.IdentityService.
type Client struct {
	baseURL       string
	accessToken   string
	adapter       *transport.RESTAdapter
	acceptedTerms AcceptedTermsSource
	group         singleflight.Group
}

func NewClient(cfg Config) (*Client, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
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
		baseURL:       baseURL,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		adapter:       adapter,
		acceptedTerms: cfg.AcceptedTerms,
	}, nil
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Terms fetches the policies the identity server requires.
func (c *Client) Terms(ctx context.Context) ([]Policy, error) {
	var body termsResponse
	_, err := transport.DoJSON(ctx, c.adapter, transport.Request{
		Method: http.MethodGet,
		URL:    transport.JoinURL(c.baseURL, termsPath),
	}, nil, &body)
	if err != nil {
		return nil, err
	}
	return body.policies()
}

// TermsAgreementProgress compares the required policies with the accepted
// document URLs. A policy counts as agreed when any of its translations was
// accepted. Concurrent callers share one round trip.
func (c *Client) TermsAgreementProgress(ctx context.Context) (core.TermsAgreementProgress, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// The shared call outlives the caller that started it.
	result := c.group.DoChan("terms_progress", func() (any, error) {
		return c.fetchProgress(context.WithoutCancel(ctx))
	})
	select {
	case res := <-result:
		if res.Err != nil {
			return core.TermsAgreementProgress{}, res.Err
		}
		return res.Val.(core.TermsAgreementProgress), nil
	case <-ctx.Done():
		return core.TermsAgreementProgress{}, ctx.Err()
	}
}

func (c *Client) fetchProgress(ctx context.Context) (core.TermsAgreementProgress, error) {
	policies, err := c.Terms(ctx)
	if err != nil {
		return core.TermsAgreementProgress{}, err
	}
	progress := core.TermsAgreementProgress{Total: len(policies)}
	if progress.Total == 0 {
		return progress, nil
	}

	var accepted []string
	if c.acceptedTerms != nil {
		accepted, err = c.acceptedTerms.AcceptedTermsURLs(ctx)
		if err != nil {
			return core.TermsAgreementProgress{}, err
		}
	}
	acceptedSet := make(map[string]struct{}, len(accepted))
	for _, value := range accepted {
		acceptedSet[strings.TrimSpace(value)] = struct{}{}
	}
	for _, policy := range policies {
		for _, documentURL := range policy.URLs() {
			if _, ok := acceptedSet[documentURL]; ok {
				progress.Agreed++
				break
			}
		}
	}
	return progress, nil
}

// TriggerAccountCheck calls the authenticated account endpoint. The identity
// server answers M_TERMS_NOT_SIGNED while terms are outstanding.
func (c *Client) TriggerAccountCheck(ctx context.Context) error {
	if c.accessToken == "" {
		return goerrors.New("identity: access token is required", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.MatrixErrorMissingToken)
	}
	_, err := transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodGet,
		URL:         transport.JoinURL(c.baseURL, accountPath),
		AccessToken: c.accessToken,
	}, nil, nil)
	return err
}

type agreeRequest struct {
	UserAccepts []string `json:"user_accepts"`
}

// AgreeToTerms tells the identity server which policy documents the user
// accepted. Blank urls are dropped.
func (c *Client) AgreeToTerms(ctx context.Context, urls []string) error {
	if c.accessToken == "" {
		return goerrors.New("identity: access token is required", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.MatrixErrorMissingToken)
	}
	body := agreeRequest{UserAccepts: make([]string, 0, len(urls))}
	for _, value := range urls {
		if value = strings.TrimSpace(value); value != "" {
			body.UserAccepts = append(body.UserAccepts, value)
		}
	}
	if len(body.UserAccepts) == 0 {
		return goerrors.NewValidation("identity: validation failed", goerrors.FieldError{
			Field:   "user_accepts",
			Message: "at least one document url is required",
		}).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.SettingsErrorBadInput)
	}
	_, err := transport.DoJSON(ctx, c.adapter, transport.Request{
		Method:      http.MethodPost,
		URL:         transport.JoinURL(c.baseURL, termsPath),
		AccessToken: c.accessToken,
	}, body, nil)
	return err
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrBaseURLRequired
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", goerrors.New("identity: invalid base url", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.SettingsErrorBadInput)
	}
	return strings.TrimRight(parsed.String(), "/"), nil
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ core.IdentityService = (*Client)(nil)
