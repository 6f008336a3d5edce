// Package twitter implements an OAuth1-signed client for Twitter's REST
// API, the wire models the adapter exchanges with it, and the closed error
// taxonomy shared with the webhook lifecycle manager.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"
)

const (
	defaultHost    = "api.twitter.com"
	defaultVersion = "1.1"
)

type ClientConfig struct {
	Credentials Credentials
	// Host and Version override the API endpoint, mainly for tests.
	// Host may carry a scheme; plain hosts are assumed https.
	Host    string
	Version string
	// HTTPClient is the base transport the OAuth1 signer wraps.
	HTTPClient *http.Client
	// RateLimiter, when set, paces outgoing calls. It never retries.
	RateLimiter *rate.Limiter
}

// Client issues OAuth1-signed requests to Twitter REST endpoints. Every
// call is a single attempt: no retry, no backoff, no implicit timeout
// beyond what the supplied context imposes.
type Client struct {
	creds       Credentials
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if config.Credentials.ConsumerKey == "" || config.Credentials.ConsumerSecret == "" {
		return nil, ErrMissingAppCredentials
	}
	if config.Credentials.AccessToken == "" || config.Credentials.AccessTokenSecret == "" {
		return nil, ErrMissingAccessCredentials
	}

	host := config.Host
	if host == "" {
		host = defaultHost
	}
	version := config.Version
	if version == "" {
		version = defaultVersion
	}

	oauthConfig := oauth1.NewConfig(config.Credentials.ConsumerKey, config.Credentials.ConsumerSecret)
	token := oauth1.NewToken(config.Credentials.AccessToken, config.Credentials.AccessTokenSecret)

	signerCtx := context.Background()
	if config.HTTPClient != nil {
		signerCtx = context.WithValue(signerCtx, oauth1.HTTPClient, config.HTTPClient)
	}

	return &Client{
		creds:       config.Credentials,
		baseURL:     baseURL(host, version),
		httpClient:  oauthConfig.Client(signerCtx, token),
		rateLimiter: config.RateLimiter,
	}, nil
}

func baseURL(host, version string) string {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(host, "/"), version)
}

// Credentials returns the signing material so the webhook lifecycle manager
// can share it. Read-only by convention.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// CallAPI issues one signed request to {baseURL}/{path}. For GET the payload
// values are percent-encoded into the query string; for every other method
// the payload is the JSON body. When form values are given they become a
// form-encoded body and the payload moves to the query string, which is the
// shape the DM typing-indicator endpoint requires.
func (c *Client) CallAPI(ctx context.Context, path, method string, payload map[string]any, form url.Values) (map[string]any, error) {
	var result map[string]any
	if err := c.call(ctx, path, method, payload, form, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, path, method string, payload map[string]any, form url.Values, out any) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(path, "/"))

	var (
		body        io.Reader
		contentType string
		query       url.Values
	)
	switch {
	case method == http.MethodGet:
		query = encodeQuery(payload)
	case form != nil:
		query = encodeQuery(payload)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case payload != nil:
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(jsonPayload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Endpoint: path}
	}

	if len(respBody) > 0 {
		var envelope apiErrors
		if err := json.Unmarshal(respBody, &envelope); err == nil {
			if msg := envelope.message(); msg != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: msg}
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func encodeQuery(payload map[string]any) url.Values {
	if len(payload) == 0 {
		return nil
	}
	query := make(url.Values, len(payload))
	for key, value := range payload {
		query.Set(key, fmt.Sprint(value))
	}
	return query
}
