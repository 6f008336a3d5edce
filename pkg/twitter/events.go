package twitter

// WebhookDelivery is the body of one Account Activity webhook POST. A single
// delivery may carry zero or more events per family; families the adapter
// does not handle are ignored.
type WebhookDelivery struct {
	ForUserID                         string                `json:"for_user_id"`
	TweetCreateEvents                 []*Tweet              `json:"tweet_create_events,omitempty"`
	DirectMessageEvents               []*DirectMessageEvent `json:"direct_message_events,omitempty"`
	DirectMessageIndicateTypingEvents []*TypingEvent        `json:"direct_message_indicate_typing_events,omitempty"`
	DirectMessageMarkReadEvents       []*MarkReadEvent      `json:"direct_message_mark_read_events,omitempty"`
	Users                             map[string]*User      `json:"users,omitempty"`
}

// TypingEvent signals the sender started typing in a DM conversation.
type TypingEvent struct {
	CreatedTimestamp string       `json:"created_timestamp"`
	SenderID         string       `json:"sender_id"`
	Target           *EventTarget `json:"target"`
}

// MarkReadEvent signals the sender read the conversation up to
// LastReadEventID.
type MarkReadEvent struct {
	CreatedTimestamp string       `json:"created_timestamp"`
	SenderID         string       `json:"sender_id"`
	Target           *EventTarget `json:"target"`
	LastReadEventID  string       `json:"last_read_event_id"`
}
