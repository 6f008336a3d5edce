package adapter

import (
	"context"
	"strings"
	"testing"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

func newTestTranslator(t *testing.T, selfID string) *Translator {
	t.Helper()
	translator, err := NewTranslator(selfID, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	return translator
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantChunks int
	}{
		{"empty", "", 1},
		{"short", "hello", 1},
		{"exactly 280", strings.Repeat("a", 280), 1},
		{"281", strings.Repeat("a", 281), 2},
		{"700", strings.Repeat("a", 700), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkText(tt.text, maxTweetLength)
			if len(chunks) != tt.wantChunks {
				t.Errorf("chunkText() produced %d chunks, want %d", len(chunks), tt.wantChunks)
			}
			for i, chunk := range chunks {
				if n := len([]rune(chunk)); n > maxTweetLength {
					t.Errorf("chunk %d has %d runes, limit is %d", i, n, maxTweetLength)
				}
			}
			if got := strings.Join(chunks, ""); got != tt.text {
				t.Errorf("chunks do not concatenate back to the original text")
			}
		})
	}
}

func TestChunkText_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("ü", 281)
	chunks := chunkText(text, maxTweetLength)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if n := len([]rune(chunks[0])); n != 280 {
		t.Errorf("Expected first chunk of 280 runes, got %d", n)
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Error("chunks do not concatenate back to the original text")
	}
}

func TestActivitiesFromDelivery_Mention(t *testing.T) {
	translator := newTestTranslator(t, "1")
	delivery := &twitter.WebhookDelivery{
		ForUserID: "1",
		TweetCreateEvents: []*twitter.Tweet{
			{
				IDStr:    "100",
				Text:     "hi",
				User:     &twitter.User{IDStr: "9", ScreenName: "someone"},
				Entities: map[string]any{"hashtags": []any{}},
			},
		},
	}

	activities := translator.ActivitiesFromDelivery(context.Background(), delivery)
	if len(activities) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(activities))
	}

	activity := activities[0]
	if activity.Type != TypeMessage || activity.ChannelID != ChannelMention {
		t.Errorf("Expected message/twitter-mention, got %s/%s", activity.Type, activity.ChannelID)
	}
	if activity.Conversation.ID != "9" {
		t.Errorf("Expected conversation id 9, got %s", activity.Conversation.ID)
	}
	if activity.Text != "hi" {
		t.Errorf("Expected text 'hi', got %q", activity.Text)
	}
	if activity.ReplyToID != "100" {
		t.Errorf("Expected reply-to id 100, got %s", activity.ReplyToID)
	}
	if _, ok := activity.ChannelData["hashtags"]; !ok {
		t.Error("Expected entities merged into channel data")
	}
}

func TestActivitiesFromDelivery_SelfFilter(t *testing.T) {
	translator := newTestTranslator(t, "1")

	tests := []struct {
		name     string
		delivery *twitter.WebhookDelivery
		want     int
	}{
		{
			name: "own tweet skipped",
			delivery: &twitter.WebhookDelivery{
				TweetCreateEvents: []*twitter.Tweet{
					{IDStr: "100", Text: "echo", User: &twitter.User{IDStr: "1"}},
				},
			},
			want: 0,
		},
		{
			name: "foreign tweet kept",
			delivery: &twitter.WebhookDelivery{
				TweetCreateEvents: []*twitter.Tweet{
					{IDStr: "100", Text: "hello", User: &twitter.User{IDStr: "2"}},
				},
			},
			want: 1,
		},
		{
			name: "own dm skipped",
			delivery: &twitter.WebhookDelivery{
				DirectMessageEvents: []*twitter.DirectMessageEvent{
					{
						Type: "message_create",
						MessageCreate: &twitter.MessageCreate{
							SenderID:    "1",
							Target:      &twitter.EventTarget{RecipientID: "2"},
							MessageData: &twitter.MessageData{Text: "echo"},
						},
					},
				},
			},
			want: 0,
		},
		{
			name: "foreign dm kept",
			delivery: &twitter.WebhookDelivery{
				DirectMessageEvents: []*twitter.DirectMessageEvent{
					{
						Type: "message_create",
						MessageCreate: &twitter.MessageCreate{
							SenderID:    "5",
							Target:      &twitter.EventTarget{RecipientID: "1"},
							MessageData: &twitter.MessageData{Text: "hello"},
						},
					},
				},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activities := translator.ActivitiesFromDelivery(context.Background(), tt.delivery)
			if len(activities) != tt.want {
				t.Errorf("Expected %d activities, got %d", tt.want, len(activities))
			}
		})
	}
}

func TestActivitiesFromDelivery_DirectMessage(t *testing.T) {
	translator := newTestTranslator(t, "1")
	delivery := &twitter.WebhookDelivery{
		DirectMessageEvents: []*twitter.DirectMessageEvent{
			{
				Type:             "message_create",
				ID:               "dm-55",
				CreatedTimestamp: "1700000000000",
				MessageCreate: &twitter.MessageCreate{
					SenderID: "7",
					Target:   &twitter.EventTarget{RecipientID: "1"},
					MessageData: &twitter.MessageData{
						Text:               "hey there",
						QuickReplyResponse: map[string]any{"metadata": "picked_a"},
					},
				},
			},
		},
		Users: map[string]*twitter.User{
			"7": {IDStr: "7", ScreenName: "friend"},
		},
	}

	activities := translator.ActivitiesFromDelivery(context.Background(), delivery)
	if len(activities) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(activities))
	}

	activity := activities[0]
	if activity.ChannelID != ChannelDM || activity.Type != TypeMessage {
		t.Errorf("Expected message/twitter-dm, got %s/%s", activity.Type, activity.ChannelID)
	}
	if activity.From.ID != "7" || activity.From.Name != "friend" {
		t.Errorf("Expected sender 7/friend, got %s/%s", activity.From.ID, activity.From.Name)
	}
	if activity.Recipient.ID != "1" {
		t.Errorf("Expected recipient 1, got %s", activity.Recipient.ID)
	}
	if activity.Timestamp.IsZero() {
		t.Error("Expected timestamp parsed from created_timestamp")
	}
	if _, ok := activity.ChannelData["quick_reply_response"]; !ok {
		t.Error("Expected quick reply response merged into channel data")
	}
}

func TestActivitiesFromDelivery_TypingAndMarkRead(t *testing.T) {
	translator := newTestTranslator(t, "1")
	delivery := &twitter.WebhookDelivery{
		DirectMessageIndicateTypingEvents: []*twitter.TypingEvent{
			{CreatedTimestamp: "1700000000000", SenderID: "7", Target: &twitter.EventTarget{RecipientID: "1"}},
		},
		DirectMessageMarkReadEvents: []*twitter.MarkReadEvent{
			{CreatedTimestamp: "1700000000000", SenderID: "7", Target: &twitter.EventTarget{RecipientID: "1"}, LastReadEventID: "dm-54"},
		},
	}

	activities := translator.ActivitiesFromDelivery(context.Background(), delivery)
	if len(activities) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(activities))
	}
	if activities[0].Type != TypeTyping {
		t.Errorf("Expected typing activity first, got %s", activities[0].Type)
	}
	if activities[1].Type != TypeMessageReaction {
		t.Errorf("Expected messageReaction activity second, got %s", activities[1].Type)
	}
	if got := activities[1].ChannelData["last_read_event_id"]; got != "dm-54" {
		t.Errorf("Expected last_read_event_id dm-54, got %v", got)
	}
}

func TestDirectMessageFromActivity(t *testing.T) {
	translator := newTestTranslator(t, "1")
	activity := &Activity{
		Type:      TypeMessage,
		ChannelID: ChannelDM,
		Recipient: ChannelAccount{ID: "7"},
		Text:      "pick one",
		ChannelData: map[string]any{
			"quick_replies": &twitter.QuickReply{
				Type:    "options",
				Options: []twitter.QuickReplyOption{{Label: "A"}, {Label: "B"}},
			},
			"ctas": []twitter.CallToAction{
				{Type: "web_url", Label: "Docs", URL: "https://example.com"},
			},
		},
	}

	event := translator.DirectMessageFromActivity(activity)
	if event.Type != "message_create" {
		t.Errorf("Expected message_create event, got %s", event.Type)
	}
	if event.MessageCreate.Target.RecipientID != "7" {
		t.Errorf("Expected recipient 7, got %s", event.MessageCreate.Target.RecipientID)
	}
	data := event.MessageCreate.MessageData
	if data.Text != "pick one" {
		t.Errorf("Expected text preserved, got %q", data.Text)
	}
	if data.QuickReply == nil || len(data.QuickReply.Options) != 2 {
		t.Errorf("Expected 2 quick reply options, got %+v", data.QuickReply)
	}
	if len(data.CTAs) != 1 || data.CTAs[0].URL != "https://example.com" {
		t.Errorf("Expected one CTA, got %+v", data.CTAs)
	}
}

func TestDirectMessageFromActivity_DecodedChannelData(t *testing.T) {
	// Channel data that round-tripped through JSON arrives as plain maps.
	translator := newTestTranslator(t, "1")
	activity := &Activity{
		Type:      TypeMessage,
		ChannelID: ChannelDM,
		Recipient: ChannelAccount{ID: "7"},
		Text:      "pick one",
		ChannelData: map[string]any{
			"quick_replies": map[string]any{
				"type":    "options",
				"options": []any{map[string]any{"label": "A"}},
			},
		},
	}

	event := translator.DirectMessageFromActivity(activity)
	data := event.MessageCreate.MessageData
	if data.QuickReply == nil || len(data.QuickReply.Options) != 1 || data.QuickReply.Options[0].Label != "A" {
		t.Errorf("Expected quick reply coerced from map, got %+v", data.QuickReply)
	}
}

func TestThreadFromActivity(t *testing.T) {
	translator := newTestTranslator(t, "1")
	activity := &Activity{
		Type:      TypeMessage,
		ChannelID: ChannelMention,
		Recipient: ChannelAccount{ID: "9"},
		ReplyToID: "100",
		Text:      strings.Repeat("x", 300),
	}

	payloads := translator.ThreadFromActivity(activity)
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 thread payloads, got %d", len(payloads))
	}
	if payloads[0].InReplyToStatusID != "100" {
		t.Errorf("Expected first payload to seed the chain with 100, got %q", payloads[0].InReplyToStatusID)
	}
	if payloads[1].InReplyToStatusID != "" {
		t.Errorf("Expected later payloads unresolved, got %q", payloads[1].InReplyToStatusID)
	}
	for i, payload := range payloads {
		if !payload.AutoPopulateReplyMetadata {
			t.Errorf("Expected auto_populate_reply_metadata on payload %d", i)
		}
	}
	if payloads[0].Status+payloads[1].Status != activity.Text {
		t.Error("Expected chunks to concatenate back to the original text")
	}
}
