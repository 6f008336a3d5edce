package twitter

import "errors"

// Error definitions
var (
	ErrInvalidConfig            = errors.New("invalid configuration")
	ErrMissingAppCredentials    = errors.New("missing consumer key or secret")
	ErrMissingAccessCredentials = errors.New("missing access token or secret")
	ErrEmptyThread              = errors.New("empty thread payload list")
)

// Credentials is the OAuth1 signing material shared by the signed client
// and the webhook lifecycle manager. Immutable once constructed.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// User is a Twitter account profile as returned by verify_credentials
// and users/show.
type User struct {
	ID         int64  `json:"id"`
	IDStr      string `json:"id_str"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Tweet is the subset of a status object the adapter cares about.
type Tweet struct {
	ID                  int64          `json:"id"`
	IDStr               string         `json:"id_str"`
	Text                string         `json:"text"`
	CreatedAt           string         `json:"created_at,omitempty"`
	InReplyToStatusID   string         `json:"in_reply_to_status_id_str,omitempty"`
	InReplyToScreenName string         `json:"in_reply_to_screen_name,omitempty"`
	User                *User          `json:"user,omitempty"`
	Entities            map[string]any `json:"entities,omitempty"`
}

// TweetRequest is an outbound statuses/update payload. For threaded replies
// InReplyToStatusID is resolved link by link while posting.
type TweetRequest struct {
	Status                    string `json:"status"`
	InReplyToStatusID         string `json:"in_reply_to_status_id,omitempty"`
	AutoPopulateReplyMetadata bool   `json:"auto_populate_reply_metadata,omitempty"`
}

// QuickReply and CallToAction are the optional interactive attachments a
// direct message can carry.
type QuickReply struct {
	Type    string             `json:"type"`
	Options []QuickReplyOption `json:"options,omitempty"`
}

type QuickReplyOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
}

type CallToAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DirectMessageEvent mirrors Twitter's message_create event tree, used both
// for outbound sends and inbound webhook deliveries.
type DirectMessageEvent struct {
	Type             string         `json:"type"`
	ID               string         `json:"id,omitempty"`
	CreatedTimestamp string         `json:"created_timestamp,omitempty"`
	MessageCreate    *MessageCreate `json:"message_create,omitempty"`
}

type MessageCreate struct {
	Target      *EventTarget `json:"target"`
	SenderID    string       `json:"sender_id,omitempty"`
	MessageData *MessageData `json:"message_data"`
}

type EventTarget struct {
	RecipientID string `json:"recipient_id"`
}

type MessageData struct {
	Text               string         `json:"text"`
	Entities           map[string]any `json:"entities,omitempty"`
	QuickReply         *QuickReply    `json:"quick_reply,omitempty"`
	QuickReplyResponse map[string]any `json:"quick_reply_response,omitempty"`
	CTAs               []CallToAction `json:"ctas,omitempty"`
}

// WebhookRegistration is one {id, url} pair as registered with Twitter for
// an environment. Never persisted locally; Twitter is the source of truth.
type WebhookRegistration struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Valid     bool   `json:"valid"`
	CreatedAt string `json:"created_timestamp,omitempty"`
}

// SubscriptionCount is the quota pair reported by the Account Activity API.
// Twitter serializes both counts as strings.
type SubscriptionCount struct {
	AccountName        string `json:"account_name"`
	SubscriptionsCount string `json:"subscriptions_count"`
	ProvisionedCount   string `json:"provisioned_count"`
}

// apiErrors is Twitter's error envelope. Data endpoints answer with an
// errors array; a few legacy endpoints use a single error string instead.
type apiErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	ErrorMessage string `json:"error"`
}

func (e *apiErrors) message() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return e.ErrorMessage
}
