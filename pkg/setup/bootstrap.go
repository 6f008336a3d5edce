package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
	"github.com/botfuse/twitter-adapter/pkg/webhook"
)

// Twitter permits one webhook per environment and rejects subscriptions
// against a missing webhook, which fixes the step order below.

// Bootstrap resets and re-registers the environment's webhook, then
// subscribes the authenticated user: RemoveWebhooks, SetWebhook, Subscribe.
// The lifecycle manager never retries on its own; here, as the caller, each
// step is retried with exponential backoff when (and only when) Twitter
// rate limited it. Any other failure aborts startup immediately.
func Bootstrap(ctx context.Context, manager *webhook.Manager, webhookURL string) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"remove stale webhooks", func() error {
			return manager.RemoveWebhooks(ctx)
		}},
		{"register webhook", func() error {
			_, err := manager.SetWebhook(ctx, webhookURL)
			return err
		}},
		{"subscribe user", func() error {
			return manager.Subscribe(ctx)
		}},
	}

	for _, step := range steps {
		if err := retryRateLimited(ctx, step.run); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		slog.Info("bootstrap step done", "step", step.name, "environment", manager.Environment())
	}
	return nil
}

var newBackOffPolicy = func() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxElapsedTime = 5 * time.Minute
	return policy
}

func retryRateLimited(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var rateLimited *twitter.RateLimitError
		if errors.As(err, &rateLimited) {
			slog.Warn("rate limited, backing off", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newBackOffPolicy(), ctx))
}
