package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

func newTestAdapter(t *testing.T, server *httptest.Server) *Adapter {
	t.Helper()

	config := &twitter.ClientConfig{
		Credentials: twitter.Credentials{
			ConsumerKey:       "key",
			ConsumerSecret:    "secret",
			AccessToken:       "token",
			AccessTokenSecret: "token-secret",
		},
	}
	if server != nil {
		config.Host = server.URL
		config.HTTPClient = server.Client()
	}
	client, err := twitter.NewClient(config)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	bot, err := New(context.Background(), &Config{Client: client, SelfID: "1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return bot
}

func TestAdapter_ProcessActivity(t *testing.T) {
	bot := newTestAdapter(t, nil)

	var seen []*Activity
	logic := func(ctx context.Context, activity *Activity) error {
		seen = append(seen, activity)
		return nil
	}

	body := []byte(`{"tweet_create_events":[{"user":{"id_str":"9"},"id_str":"100","text":"hi","entities":{}}]}`)
	if err := bot.ProcessActivity(context.Background(), body, logic); err != nil {
		t.Fatalf("ProcessActivity() error = %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("Expected 1 activity handed to logic, got %d", len(seen))
	}
	activity := seen[0]
	if activity.Type != TypeMessage {
		t.Errorf("Expected message activity, got %s", activity.Type)
	}
	if activity.Conversation.ID != "9" {
		t.Errorf("Expected conversation id 9, got %s", activity.Conversation.ID)
	}
	if activity.Text != "hi" {
		t.Errorf("Expected text 'hi', got %q", activity.Text)
	}
}

func TestAdapter_ProcessActivity_MalformedBody(t *testing.T) {
	bot := newTestAdapter(t, nil)
	logic := func(ctx context.Context, activity *Activity) error { return nil }
	if err := bot.ProcessActivity(context.Background(), []byte("{oops"), logic); err == nil {
		t.Error("Expected error for malformed delivery body")
	}
}

func TestAdapter_SendActivities_ContinuesPastFailure(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		var payload struct {
			Event *twitter.DirectMessageEvent `json:"event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload.Event.MessageCreate.Target.RecipientID == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		payload.Event.ID = "dm-ok"
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	bot := newTestAdapter(t, server)
	activities := []*Activity{
		{Type: TypeMessage, ChannelID: ChannelDM, Recipient: ChannelAccount{ID: "bad"}, Text: "first"},
		{Type: TypeMessage, ChannelID: ChannelDM, Recipient: ChannelAccount{ID: "good"}, Text: "second"},
	}

	responses := bot.SendActivities(context.Background(), activities)
	if attempts != 2 {
		t.Errorf("Expected both sends attempted, got %d", attempts)
	}
	if len(responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(responses))
	}
	if responses[0].ID != "" {
		t.Errorf("Expected empty id for failed send, got %q", responses[0].ID)
	}
	if responses[1].ID != "dm-ok" {
		t.Errorf("Expected dm-ok id for successful send, got %q", responses[1].ID)
	}
}

func TestAdapter_SendActivities_UnmappedKind(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
	}))
	defer server.Close()

	bot := newTestAdapter(t, server)
	responses := bot.SendActivities(context.Background(), []*Activity{
		{Type: TypeMessageReaction, ChannelID: ChannelDM, Recipient: ChannelAccount{ID: "7"}},
	})
	if attempts != 0 {
		t.Errorf("Expected no API call for unmapped activity kind, got %d", attempts)
	}
	if len(responses) != 1 || responses[0].ID != "" {
		t.Errorf("Expected one empty response, got %+v", responses)
	}
}

func TestAdapter_SendActivities_Typing(t *testing.T) {
	var typingCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.1/direct_messages/indicate_typing.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("recipient_id"); got != "7" {
			t.Errorf("Expected recipient_id=7, got %q", got)
		}
		typingCalls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	bot := newTestAdapter(t, server)
	bot.SendActivities(context.Background(), []*Activity{
		{Type: TypeTyping, ChannelID: ChannelDM, Recipient: ChannelAccount{ID: "7"}},
	})
	if typingCalls != 1 {
		t.Errorf("Expected one typing call, got %d", typingCalls)
	}
}

func TestAdapter_UpdateDeleteAreNoops(t *testing.T) {
	bot := newTestAdapter(t, nil)
	if err := bot.UpdateActivity(context.Background(), &Activity{}); err != nil {
		t.Errorf("UpdateActivity() error = %v, want nil", err)
	}
	if err := bot.DeleteActivity(context.Background(), "100"); err != nil {
		t.Errorf("DeleteActivity() error = %v, want nil", err)
	}
}
