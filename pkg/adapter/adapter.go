package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
	"github.com/botfuse/twitter-adapter/pkg/utils/metrics"
	"github.com/botfuse/twitter-adapter/pkg/webhook"
)

type Config struct {
	Client *twitter.Client
	// Manager resolves the authenticated account at init when SelfID is
	// not supplied directly.
	Manager *webhook.Manager
	// SelfID is the adapter account's numeric id string. Events authored
	// by this id are filtered out on ingress.
	SelfID string
	// Metrics is optional; when set the adapter records send and
	// delivery instrumentation.
	Metrics *metrics.MetricsCollector
}

// Adapter is the channel surface handed to the host bot framework: it
// translates inbound deliveries into turns and outbound activities into
// Twitter API calls.
type Adapter struct {
	api        *twitter.Client
	translator *Translator
	selfID     string
	metrics    *metrics.MetricsCollector
}

func New(ctx context.Context, config *Config) (*Adapter, error) {
	if config == nil || config.Client == nil {
		return nil, twitter.ErrInvalidConfig
	}

	selfID := config.SelfID
	if selfID == "" {
		if config.Manager == nil {
			return nil, fmt.Errorf("%w: need either SelfID or Manager to resolve it", twitter.ErrInvalidConfig)
		}
		profile, err := config.Manager.VerifyCredentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve self user id: %w", err)
		}
		selfID = profile.IDStr
		slog.Info("resolved adapter account", "user_id", selfID, "screen_name", profile.ScreenName)
	}

	translator, err := NewTranslator(selfID, config.Client)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		api:        config.Client,
		translator: translator,
		selfID:     selfID,
		metrics:    config.Metrics,
	}, nil
}

// GetAPI returns the ready-to-use signed client for direct endpoint access.
func (a *Adapter) GetAPI() *twitter.Client {
	return a.api
}

// SelfID returns the authenticated account's numeric id string.
func (a *Adapter) SelfID() string {
	return a.selfID
}

// ProcessActivity translates a raw webhook delivery body and runs the turn
// logic once per contained event, sequentially and in array order. It
// returns only after every event has been handled, so the webhook HTTP
// response waits for the whole delivery.
func (a *Adapter) ProcessActivity(ctx context.Context, body []byte, logic TurnHandler) error {
	var delivery twitter.WebhookDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return fmt.Errorf("decode webhook delivery: %w", err)
	}
	return a.processDelivery(ctx, &delivery, logic)
}

func (a *Adapter) processDelivery(ctx context.Context, delivery *twitter.WebhookDelivery, logic TurnHandler) error {
	activities := a.translator.ActivitiesFromDelivery(ctx, delivery)
	if a.metrics != nil {
		a.metrics.IncrementCounter(metrics.MetricWebhookDelivery)
	}
	for _, activity := range activities {
		if err := logic(ctx, activity); err != nil {
			return fmt.Errorf("turn logic failed for %s/%s activity: %w", activity.ChannelID, activity.Type, err)
		}
	}
	return nil
}

// Processor binds the turn logic to this adapter so a webhook server can
// dispatch deliveries to it.
func (a *Adapter) Processor(logic TurnHandler) webhook.DeliveryProcessor {
	return &boundProcessor{adapter: a, logic: logic}
}

type boundProcessor struct {
	adapter *Adapter
	logic   TurnHandler
}

func (p *boundProcessor) ProcessDelivery(ctx context.Context, delivery *twitter.WebhookDelivery) error {
	return p.adapter.processDelivery(ctx, delivery, p.logic)
}

// SendActivities delivers a batch of outbound activities sequentially in
// array order. A failure to send one activity is logged and swallowed so
// the rest of the batch still goes out; its response slot stays empty.
func (a *Adapter) SendActivities(ctx context.Context, activities []*Activity) []*ResourceResponse {
	responses := make([]*ResourceResponse, len(activities))
	for i, activity := range activities {
		id, err := a.sendActivity(ctx, activity)
		if err != nil {
			slog.Error("failed to send activity",
				"channel", activity.ChannelID,
				"type", activity.Type,
				"recipient", activity.Recipient.ID,
				"error", err,
			)
			responses[i] = &ResourceResponse{}
			continue
		}
		responses[i] = &ResourceResponse{ID: id}
	}
	return responses
}

func (a *Adapter) sendActivity(ctx context.Context, activity *Activity) (string, error) {
	run := func(fn func() error) error {
		if a.metrics != nil {
			return a.metrics.WithLatencyTracking(metrics.MetricActivitySend, fn)
		}
		return fn()
	}

	switch {
	case activity.ChannelID == ChannelDM && activity.Type == TypeMessage:
		var id string
		err := run(func() error {
			event, err := a.api.SendDirectMessage(ctx, a.translator.DirectMessageFromActivity(activity))
			if err != nil {
				return err
			}
			if event != nil {
				id = event.ID
			}
			return nil
		})
		return id, err

	case activity.ChannelID == ChannelDM && activity.Type == TypeTyping:
		return "", run(func() error {
			return a.api.IndicateTyping(ctx, activity.Recipient.ID)
		})

	case activity.ChannelID == ChannelMention && activity.Type == TypeMessage:
		var id string
		err := run(func() error {
			tweets, err := a.api.PostThreadReply(ctx, a.translator.ThreadFromActivity(activity))
			if err != nil {
				return err
			}
			if len(tweets) > 0 {
				id = tweets[0].IDStr
			}
			return nil
		})
		return id, err

	default:
		slog.Info("activity kind has no Twitter mapping, not sent",
			"channel", activity.ChannelID, "type", activity.Type)
		return "", nil
	}
}

// UpdateActivity is a no-op: Twitter exposes no edit primitive for bots on
// this surface.
func (a *Adapter) UpdateActivity(ctx context.Context, activity *Activity) error {
	slog.Debug("updateActivity is not supported on this channel")
	return nil
}

// DeleteActivity is a no-op for the same reason.
func (a *Adapter) DeleteActivity(ctx context.Context, activityID string) error {
	slog.Debug("deleteActivity is not supported on this channel")
	return nil
}
