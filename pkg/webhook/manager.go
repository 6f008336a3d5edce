// Package webhook manages the server side of Twitter's Account Activity
// product: registering a webhook URL for an environment, answering the CRC
// handshake, keeping the user subscription in place, and serving inbound
// event deliveries.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/dghubble/oauth1"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

const defaultRoot = "https://api.twitter.com"

// SubscriptionQuota is the in-memory copy of the account's subscription
// counts. It is optimistically adjusted on successful subscribe and
// unsubscribe calls and can drift from server truth if the account is
// mutated through another path; treat it as advisory and call
// RefreshSubscriptionCount when authoritative numbers matter.
type SubscriptionQuota struct {
	Subscriptions int
	Provisioned   int
}

type ManagerConfig struct {
	Credentials twitter.Credentials
	// Environment is the Account Activity environment name that scopes all
	// webhook and subscription operations.
	Environment string
	// Root overrides the API origin, mainly for tests. Defaults to
	// https://api.twitter.com.
	Root string
	// HTTPClient is the base transport, shared by signed and bearer calls.
	HTTPClient *http.Client
}

// Manager drives the webhook registration state machine for one
// environment. Operations never retry on their own; rate-limit and error
// classification is left to the caller.
type Manager struct {
	creds       twitter.Credentials
	environment string
	root        string

	signedClient *http.Client
	bearerClient *http.Client

	mu     sync.Mutex
	bearer string
	quota  *SubscriptionQuota
}

func NewManager(config *ManagerConfig) (*Manager, error) {
	if config == nil {
		return nil, twitter.ErrInvalidConfig
	}
	if config.Credentials.ConsumerKey == "" || config.Credentials.ConsumerSecret == "" {
		return nil, twitter.ErrMissingAppCredentials
	}
	if config.Credentials.AccessToken == "" || config.Credentials.AccessTokenSecret == "" {
		return nil, twitter.ErrMissingAccessCredentials
	}
	if config.Environment == "" {
		return nil, fmt.Errorf("%w: missing environment name", twitter.ErrInvalidConfig)
	}

	root := config.Root
	if root == "" {
		root = defaultRoot
	}

	baseClient := config.HTTPClient
	if baseClient == nil {
		baseClient = http.DefaultClient
	}

	oauthConfig := oauth1.NewConfig(config.Credentials.ConsumerKey, config.Credentials.ConsumerSecret)
	token := oauth1.NewToken(config.Credentials.AccessToken, config.Credentials.AccessTokenSecret)
	signerCtx := context.WithValue(context.Background(), oauth1.HTTPClient, baseClient)

	return &Manager{
		creds:        config.Credentials,
		environment:  config.Environment,
		root:         strings.TrimSuffix(root, "/"),
		signedClient: oauthConfig.Client(signerCtx, token),
		bearerClient: baseClient,
	}, nil
}

// Environment returns the Account Activity environment name this manager
// is scoped to.
func (m *Manager) Environment() string {
	return m.environment
}

// BearerToken exchanges the consumer key and secret for an app-only token
// via the client-credentials grant. The token is memoized for the lifetime
// of the manager; a manager is expected to live for one setup or server
// process, so expiry is handled by constructing a fresh manager.
func (m *Manager) BearerToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	cached := m.bearer
	m.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	endpoint := m.root + "/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.SetBasicAuth(url.QueryEscape(m.creds.ConsumerKey), url.QueryEscape(m.creds.ConsumerSecret))

	status, body, err := m.do(m.bearerClient, req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &twitter.APIError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}

	var result struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode bearer token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", &twitter.APIError{StatusCode: status, Message: "bearer token response carried no access_token"}
	}

	m.mu.Lock()
	m.bearer = result.AccessToken
	m.mu.Unlock()
	return result.AccessToken, nil
}

// GetWebhooks lists the webhooks currently registered for the environment.
func (m *Manager) GetWebhooks(ctx context.Context) ([]twitter.WebhookRegistration, error) {
	endpoint := fmt.Sprintf("%s/1.1/account_activity/all/%s/webhooks.json", m.root, m.environment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	status, body, err := m.do(m.signedClient, req)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK:
		var hooks []twitter.WebhookRegistration
		if err := json.Unmarshal(body, &hooks); err != nil {
			return nil, fmt.Errorf("decode webhook list: %w", err)
		}
		return hooks, nil
	case status == http.StatusTooManyRequests:
		return nil, &twitter.RateLimitError{Endpoint: "webhooks.json"}
	default:
		message := twitter.ParseErrorMessage(body)
		if message == "" {
			message = fmt.Sprintf("could not fetch webhooks for environment %q; check the environment name and credentials", m.environment)
		}
		return nil, &twitter.APIError{StatusCode: status, Message: message}
	}
}

// DeleteWebhooks removes each listed webhook by id, sequentially.
func (m *Manager) DeleteWebhooks(ctx context.Context, hooks []twitter.WebhookRegistration) error {
	for _, hook := range hooks {
		endpoint := fmt.Sprintf("%s/1.1/account_activity/all/%s/webhooks/%s.json", m.root, m.environment, hook.ID)
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		status, body, err := m.do(m.signedClient, req)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK || status == http.StatusNoContent:
			slog.Info("deleted webhook", "id", hook.ID, "url", hook.URL)
		case status == http.StatusTooManyRequests:
			return &twitter.RateLimitError{Endpoint: "webhooks/" + hook.ID}
		default:
			message := twitter.ParseErrorMessage(body)
			if message == "" {
				message = fmt.Sprintf("could not delete webhook %s", hook.ID)
			}
			return &twitter.APIError{StatusCode: status, Message: message}
		}
	}
	return nil
}

// SetWebhook registers rawURL as the environment's webhook. Twitter fires
// the CRC challenge at the URL during this call, so the webhook server must
// already be reachable. A malformed or non-https URL fails fast without any
// network call.
func (m *Manager) SetWebhook(ctx context.Context, rawURL string) (*twitter.WebhookRegistration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid webhook URL %q: must be an absolute https URL", rawURL)
	}

	endpoint := fmt.Sprintf("%s/1.1/account_activity/all/%s/webhooks.json?url=%s",
		m.root, m.environment, url.QueryEscape(rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	status, body, err := m.do(m.signedClient, req)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK || status == http.StatusNoContent || status == http.StatusCreated:
		registration := &twitter.WebhookRegistration{URL: rawURL}
		if len(body) > 0 {
			if err := json.Unmarshal(body, registration); err != nil {
				return nil, fmt.Errorf("decode webhook registration: %w", err)
			}
		}
		slog.Info("registered webhook", "id", registration.ID, "url", rawURL, "environment", m.environment)
		return registration, nil
	case status == http.StatusBadRequest || status == http.StatusForbidden:
		return nil, &twitter.WebhookURIError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	case status == http.StatusTooManyRequests:
		return nil, &twitter.RateLimitError{Endpoint: "webhooks.json"}
	default:
		return nil, &twitter.APIError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}
}

// RemoveWebhooks fetches and deletes every webhook registered for the
// environment. Idempotent reset; Twitter permits at most one webhook per
// environment, so this must run before SetWebhook on first-time setup.
func (m *Manager) RemoveWebhooks(ctx context.Context) error {
	hooks, err := m.GetWebhooks(ctx)
	if err != nil {
		return err
	}
	return m.DeleteWebhooks(ctx, hooks)
}

// VerifyCredentials confirms the credential bundle is valid and returns the
// authenticated account's profile. The profile id doubles as the adapter's
// self id for filtering self-authored events.
func (m *Manager) VerifyCredentials(ctx context.Context) (*twitter.User, error) {
	endpoint := m.root + "/1.1/account/verify_credentials.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	status, body, err := m.do(m.signedClient, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &twitter.UserSubscriptionError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}

	var user twitter.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &user, nil
}

// Subscribe adds the authenticated user to the environment's subscriptions.
// The cached quota is checked first; when it is exhausted the call fails
// before any subscribe request goes out. A 204 answer optimistically
// increments the cache.
func (m *Manager) Subscribe(ctx context.Context) error {
	if _, err := m.VerifyCredentials(ctx); err != nil {
		return err
	}

	quota, err := m.subscriptionQuota(ctx)
	if err != nil {
		return err
	}
	if quota.Subscriptions >= quota.Provisioned {
		return &twitter.TooManySubscriptionsError{Provisioned: quota.Provisioned}
	}

	endpoint := fmt.Sprintf("%s/1.1/account_activity/all/%s/subscriptions.json", m.root, m.environment)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	status, body, err := m.do(m.signedClient, req)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &twitter.UserSubscriptionError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}

	m.mu.Lock()
	if m.quota != nil {
		m.quota.Subscriptions++
	}
	m.mu.Unlock()
	slog.Info("subscribed user to environment", "environment", m.environment)
	return nil
}

// Unsubscribe removes a user's subscription by id, using bearer auth. A 204
// answer optimistically decrements the cached quota.
func (m *Manager) Unsubscribe(ctx context.Context, userID string) error {
	bearer, err := m.BearerToken(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/1.1/account_activity/all/%s/subscriptions/%s.json", m.root, m.environment, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	status, body, err := m.do(m.bearerClient, req)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &twitter.UserSubscriptionError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}

	m.mu.Lock()
	if m.quota != nil && m.quota.Subscriptions > 0 {
		m.quota.Subscriptions--
	}
	m.mu.Unlock()
	slog.Info("unsubscribed user from environment", "user_id", userID, "environment", m.environment)
	return nil
}

// RefreshSubscriptionCount discards the cached quota and re-fetches the
// authoritative counts from Twitter.
func (m *Manager) RefreshSubscriptionCount(ctx context.Context) (SubscriptionQuota, error) {
	m.mu.Lock()
	m.quota = nil
	m.mu.Unlock()

	quota, err := m.subscriptionQuota(ctx)
	if err != nil {
		return SubscriptionQuota{}, err
	}
	return *quota, nil
}

func (m *Manager) subscriptionQuota(ctx context.Context) (*SubscriptionQuota, error) {
	m.mu.Lock()
	cached := m.quota
	m.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	bearer, err := m.BearerToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := m.root + "/1.1/account_activity/all/subscriptions/count.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	status, body, err := m.do(m.bearerClient, req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, &twitter.RateLimitError{Endpoint: "subscriptions/count.json"}
	}
	if status != http.StatusOK {
		return nil, &twitter.UserSubscriptionError{StatusCode: status, Message: twitter.ParseErrorMessage(body)}
	}

	var count twitter.SubscriptionCount
	if err := json.Unmarshal(body, &count); err != nil {
		return nil, fmt.Errorf("decode subscription count: %w", err)
	}
	subscriptions, err := strconv.Atoi(count.SubscriptionsCount)
	if err != nil {
		return nil, fmt.Errorf("parse subscriptions_count %q: %w", count.SubscriptionsCount, err)
	}
	provisioned, err := strconv.Atoi(count.ProvisionedCount)
	if err != nil {
		return nil, fmt.Errorf("parse provisioned_count %q: %w", count.ProvisionedCount, err)
	}

	quota := &SubscriptionQuota{Subscriptions: subscriptions, Provisioned: provisioned}
	m.mu.Lock()
	m.quota = quota
	m.mu.Unlock()
	return quota, nil
}

func (m *Manager) do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
