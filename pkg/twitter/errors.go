package twitter

import (
	"encoding/json"
	"fmt"
)

// RateLimitError indicates Twitter answered with HTTP 429. The caller is
// expected to back off and retry on its own schedule; nothing in this
// package retries automatically.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	if e.Endpoint == "" {
		return "twitter rate limit exceeded"
	}
	return fmt.Sprintf("twitter rate limit exceeded on %s", e.Endpoint)
}

// APIError is a generic non-2xx answer from a Twitter data endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitter API error: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("twitter API error: %s (status %d)", e.Message, e.StatusCode)
}

// WebhookURIError indicates Twitter rejected a webhook URL, most commonly
// because the endpoint did not answer the CRC challenge correctly.
type WebhookURIError struct {
	StatusCode int
	Message    string
}

func (e *WebhookURIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitter rejected webhook URL (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("twitter rejected webhook URL: %s (status %d)", e.Message, e.StatusCode)
}

// UserSubscriptionError indicates a credential check or a
// subscription mutation failed.
type UserSubscriptionError struct {
	StatusCode int
	Message    string
}

func (e *UserSubscriptionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitter subscription error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("twitter subscription error: %s (status %d)", e.Message, e.StatusCode)
}

// TooManySubscriptionsError is raised before any network call when the
// cached subscription count has reached the provisioned quota.
type TooManySubscriptionsError struct {
	Provisioned int
}

func (e *TooManySubscriptionsError) Error() string {
	return fmt.Sprintf("all %d provisioned subscriptions are in use", e.Provisioned)
}

// ParseErrorMessage extracts the Twitter-reported message from an error
// envelope body. Returns "" when the body carries no recognizable envelope.
func ParseErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope apiErrors
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.message()
}
