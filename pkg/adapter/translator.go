package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

// maxTweetLength is the per-tweet character limit applied when a mention
// reply is segmented into a thread.
const maxTweetLength = 280

const userCacheSize = 512

// Translator maps inbound webhook events to normalized activities and
// outbound activities to Twitter payloads. Events authored by the
// adapter's own account are dropped on ingress so the bot never reacts
// to itself.
type Translator struct {
	selfID string
	api    *twitter.Client
	users  *lru.Cache[string, string]
}

func NewTranslator(selfID string, api *twitter.Client) (*Translator, error) {
	users, err := lru.New[string, string](userCacheSize)
	if err != nil {
		return nil, err
	}
	return &Translator{
		selfID: selfID,
		api:    api,
		users:  users,
	}, nil
}

// ActivitiesFromDelivery converts every handled event family in the
// delivery into activities, preserving array order within each family.
func (t *Translator) ActivitiesFromDelivery(ctx context.Context, delivery *twitter.WebhookDelivery) []*Activity {
	var activities []*Activity

	for _, tweet := range delivery.TweetCreateEvents {
		activity := t.activityFromTweet(tweet)
		if activity != nil {
			activities = append(activities, activity)
		}
	}
	for _, event := range delivery.DirectMessageEvents {
		activity := t.activityFromDirectMessage(ctx, event, delivery.Users)
		if activity != nil {
			activities = append(activities, activity)
		}
	}
	for _, event := range delivery.DirectMessageIndicateTypingEvents {
		if event.Target == nil {
			slog.Warn("typing event without target, skipping")
			continue
		}
		activities = append(activities, &Activity{
			Type:         TypeTyping,
			ChannelID:    ChannelDM,
			Conversation: ConversationAccount{ID: event.SenderID},
			From:         ChannelAccount{ID: event.SenderID},
			Recipient:    ChannelAccount{ID: event.Target.RecipientID},
			Timestamp:    timestampFromMillis(event.CreatedTimestamp),
		})
	}
	for _, event := range delivery.DirectMessageMarkReadEvents {
		if event.Target == nil {
			slog.Warn("mark-read event without target, skipping")
			continue
		}
		activities = append(activities, &Activity{
			Type:         TypeMessageReaction,
			ChannelID:    ChannelDM,
			Conversation: ConversationAccount{ID: event.SenderID},
			From:         ChannelAccount{ID: event.SenderID},
			Recipient:    ChannelAccount{ID: event.Target.RecipientID},
			Timestamp:    timestampFromMillis(event.CreatedTimestamp),
			ChannelData: map[string]any{
				"last_read_event_id": event.LastReadEventID,
			},
		})
	}

	return activities
}

func (t *Translator) activityFromTweet(tweet *twitter.Tweet) *Activity {
	if tweet.User == nil {
		slog.Warn("tweet event without user, skipping", "tweet_id", tweet.IDStr)
		return nil
	}
	if tweet.User.IDStr == t.selfID {
		slog.Debug("skipping self-authored tweet", "tweet_id", tweet.IDStr)
		return nil
	}

	channelData := map[string]any{
		"tweet_id": tweet.IDStr,
	}
	if tweet.InReplyToStatusID != "" {
		channelData["in_reply_to_status_id"] = tweet.InReplyToStatusID
	}
	for key, value := range tweet.Entities {
		channelData[key] = value
	}

	timestamp, err := time.Parse(time.RubyDate, tweet.CreatedAt)
	if err != nil {
		timestamp = time.Now().UTC()
	}

	return &Activity{
		Type:         TypeMessage,
		ChannelID:    ChannelMention,
		Conversation: ConversationAccount{ID: tweet.User.IDStr},
		From:         ChannelAccount{ID: tweet.User.IDStr, Name: tweet.User.ScreenName},
		Recipient:    ChannelAccount{ID: t.selfID},
		Text:         tweet.Text,
		ReplyToID:    tweet.IDStr,
		Timestamp:    timestamp,
		ChannelData:  channelData,
	}
}

func (t *Translator) activityFromDirectMessage(ctx context.Context, event *twitter.DirectMessageEvent, users map[string]*twitter.User) *Activity {
	if event.Type != "message_create" || event.MessageCreate == nil ||
		event.MessageCreate.Target == nil || event.MessageCreate.MessageData == nil {
		slog.Warn("unrecognized direct message event shape, skipping", "event_id", event.ID, "type", event.Type)
		return nil
	}

	senderID := event.MessageCreate.SenderID
	if senderID == t.selfID {
		slog.Debug("skipping self-authored direct message", "event_id", event.ID)
		return nil
	}

	data := event.MessageCreate.MessageData
	channelData := map[string]any{
		"event_id": event.ID,
	}
	for key, value := range data.Entities {
		channelData[key] = value
	}
	if data.QuickReplyResponse != nil {
		channelData["quick_reply_response"] = data.QuickReplyResponse
	}

	return &Activity{
		Type:         TypeMessage,
		ChannelID:    ChannelDM,
		Conversation: ConversationAccount{ID: senderID},
		From:         ChannelAccount{ID: senderID, Name: t.resolveUserName(ctx, senderID, users)},
		Recipient:    ChannelAccount{ID: event.MessageCreate.Target.RecipientID},
		Text:         data.Text,
		Timestamp:    timestampFromMillis(event.CreatedTimestamp),
		ChannelData:  channelData,
	}
}

// resolveUserName fills a sender's screen name from the delivery's users
// map when present, then from the LRU cache, and only then from the API.
func (t *Translator) resolveUserName(ctx context.Context, userID string, users map[string]*twitter.User) string {
	if user, ok := users[userID]; ok && user != nil {
		t.users.Add(userID, user.ScreenName)
		return user.ScreenName
	}
	if name, ok := t.users.Get(userID); ok {
		return name
	}
	if t.api == nil {
		return ""
	}
	user, err := t.api.LookupUser(ctx, userID)
	if err != nil {
		slog.Warn("user lookup failed", "user_id", userID, "error", err)
		return ""
	}
	t.users.Add(userID, user.ScreenName)
	return user.ScreenName
}

// DirectMessageFromActivity builds the message_create payload for a DM
// message activity, attaching quick replies and CTAs from channel data.
func (t *Translator) DirectMessageFromActivity(activity *Activity) *twitter.DirectMessageEvent {
	data := &twitter.MessageData{Text: activity.Text}
	if raw, ok := activity.ChannelData["quick_replies"]; ok {
		data.QuickReply = coerceQuickReply(raw)
	}
	if raw, ok := activity.ChannelData["ctas"]; ok {
		data.CTAs = coerceCTAs(raw)
	}
	return &twitter.DirectMessageEvent{
		Type: "message_create",
		MessageCreate: &twitter.MessageCreate{
			Target:      &twitter.EventTarget{RecipientID: activity.Recipient.ID},
			MessageData: data,
		},
	}
}

// ThreadFromActivity splits a mention reply into at most 280-character
// chunks, one threaded reply payload per chunk. Segmentation is fixed
// width over runes, not word aware; the chunks concatenate back to the
// original text.
func (t *Translator) ThreadFromActivity(activity *Activity) []*twitter.TweetRequest {
	chunks := chunkText(activity.Text, maxTweetLength)
	payloads := make([]*twitter.TweetRequest, 0, len(chunks))
	for i, chunk := range chunks {
		payload := &twitter.TweetRequest{
			Status:                    chunk,
			AutoPopulateReplyMetadata: true,
		}
		if i == 0 {
			payload.InReplyToStatusID = activity.ReplyToID
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

func chunkText(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func timestampFromMillis(millis string) time.Time {
	value, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(value).UTC()
}

// coerceQuickReply accepts either the typed struct or a decoded JSON map,
// since channel data may have round-tripped through serialization.
func coerceQuickReply(raw any) *twitter.QuickReply {
	switch value := raw.(type) {
	case *twitter.QuickReply:
		return value
	case twitter.QuickReply:
		return &value
	default:
		var reply twitter.QuickReply
		if remarshal(raw, &reply) {
			return &reply
		}
		slog.Warn("unrecognized quick_replies channel data, dropping")
		return nil
	}
}

func coerceCTAs(raw any) []twitter.CallToAction {
	switch value := raw.(type) {
	case []twitter.CallToAction:
		return value
	default:
		var ctas []twitter.CallToAction
		if remarshal(raw, &ctas) {
			return ctas
		}
		slog.Warn("unrecognized ctas channel data, dropping")
		return nil
	}
}

func remarshal(raw, out any) bool {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(encoded, out) == nil
}
