package twitter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// SendDirectMessage posts one message_create event to the recipient. The
// returned event carries the id Twitter assigned to the message.
func (c *Client) SendDirectMessage(ctx context.Context, event *DirectMessageEvent) (*DirectMessageEvent, error) {
	var result struct {
		Event *DirectMessageEvent `json:"event"`
	}
	payload := map[string]any{"event": event}
	if err := c.call(ctx, "direct_messages/events/new.json", http.MethodPost, payload, nil, &result); err != nil {
		return nil, fmt.Errorf("send direct message: %w", err)
	}
	return result.Event, nil
}

// IndicateTyping shows the typing indicator in the recipient's DM window.
// The endpoint only accepts form encoding.
func (c *Client) IndicateTyping(ctx context.Context, recipientID string) error {
	form := url.Values{}
	form.Set("recipient_id", recipientID)
	if err := c.call(ctx, "direct_messages/indicate_typing.json", http.MethodPost, nil, form, nil); err != nil {
		return fmt.Errorf("indicate typing: %w", err)
	}
	return nil
}

// UpdateStatus posts a single tweet.
func (c *Client) UpdateStatus(ctx context.Context, request *TweetRequest) (*Tweet, error) {
	payload := map[string]any{
		"status": request.Status,
	}
	if request.InReplyToStatusID != "" {
		payload["in_reply_to_status_id"] = request.InReplyToStatusID
	}
	if request.AutoPopulateReplyMetadata {
		payload["auto_populate_reply_metadata"] = true
	}

	var tweet Tweet
	if err := c.call(ctx, "statuses/update.json", http.MethodPost, payload, nil, &tweet); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return &tweet, nil
}

// PostThreadReply posts the payloads as one thread, strictly in order. The
// first payload's InReplyToStatusID seeds the chain; after each post the
// returned tweet id becomes the parent of the next payload. A failure
// aborts the remaining posts; tweets already posted stay up.
func (c *Client) PostThreadReply(ctx context.Context, payloads []*TweetRequest) ([]*Tweet, error) {
	if len(payloads) == 0 {
		return nil, ErrEmptyThread
	}

	posted := make([]*Tweet, 0, len(payloads))
	parentID := payloads[0].InReplyToStatusID
	for i, payload := range payloads {
		payload.InReplyToStatusID = parentID
		tweet, err := c.UpdateStatus(ctx, payload)
		if err != nil {
			slog.Error("thread reply aborted", "posted", len(posted), "failed_index", i, "error", err)
			return posted, fmt.Errorf("post thread reply %d of %d: %w", i+1, len(payloads), err)
		}
		posted = append(posted, tweet)
		parentID = tweet.IDStr
	}
	return posted, nil
}

// LookupUser fetches a user profile by numeric id string.
func (c *Client) LookupUser(ctx context.Context, userID string) (*User, error) {
	var user User
	payload := map[string]any{"user_id": userID}
	if err := c.call(ctx, "users/show.json", http.MethodGet, payload, nil, &user); err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}
