// Package adapter translates between the bot framework's normalized
// activities and Twitter's wire formats, and exposes the adapter surface
// (ProcessActivity, SendActivities) the framework drives.
package adapter

import (
	"context"
	"time"
)

// ChannelID identifies which Twitter surface an activity belongs to.
type ChannelID string

const (
	ChannelMention ChannelID = "twitter-mention"
	ChannelDM      ChannelID = "twitter-dm"
)

// ActivityType mirrors the framework's activity type vocabulary, limited to
// the kinds this channel can produce.
type ActivityType string

const (
	TypeMessage         ActivityType = "message"
	TypeTyping          ActivityType = "typing"
	TypeMessageReaction ActivityType = "messageReaction"
)

type ConversationAccount struct {
	ID string `json:"id"`
}

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Activity is the framework-normalized representation of one Twitter event.
// Constructed fresh per inbound event; it only lives for the duration of
// one turn.
type Activity struct {
	Type         ActivityType        `json:"type"`
	ChannelID    ChannelID           `json:"channelId"`
	Conversation ConversationAccount `json:"conversation"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Text         string              `json:"text,omitempty"`
	// ReplyToID carries the tweet id a mention reply should thread onto.
	ReplyToID   string         `json:"replyToId,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitempty"`
	ChannelData map[string]any `json:"channelData,omitempty"`
}

// ResourceResponse reports the id Twitter assigned to a sent activity,
// where one exists.
type ResourceResponse struct {
	ID string `json:"id,omitempty"`
}

// TurnHandler is the host framework's turn-processing entry point. It is
// invoked once per inbound activity, sequentially within one delivery.
type TurnHandler func(ctx context.Context, activity *Activity) error
