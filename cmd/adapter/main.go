package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/botfuse/twitter-adapter/pkg/adapter"
	"github.com/botfuse/twitter-adapter/pkg/setup"
	"github.com/botfuse/twitter-adapter/pkg/twitter"
	"github.com/botfuse/twitter-adapter/pkg/utils/logger"
	"github.com/botfuse/twitter-adapter/pkg/utils/metrics"
	"github.com/botfuse/twitter-adapter/pkg/webhook"
)

func startMonitoring(addr string, collector *metrics.MetricsCollector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("monitoring server failed", "error", err)
		}
	}()

	slog.Info("monitoring endpoints started", "addr", addr)
}

// echoLogic is the demo turn handler wired when the binary runs on its
// own: it echoes DM text back and thanks mention authors.
func echoLogic(a *adapter.Adapter) adapter.TurnHandler {
	return func(ctx context.Context, activity *adapter.Activity) error {
		if activity.Type != adapter.TypeMessage {
			slog.Debug("ignoring non-message activity", "type", activity.Type)
			return nil
		}

		reply := &adapter.Activity{
			Type:      adapter.TypeMessage,
			ChannelID: activity.ChannelID,
			Recipient: adapter.ChannelAccount{ID: activity.From.ID},
			ReplyToID: activity.ReplyToID,
		}
		switch activity.ChannelID {
		case adapter.ChannelDM:
			reply.Text = "You said: " + activity.Text
		case adapter.ChannelMention:
			reply.Text = fmt.Sprintf("@%s thanks for the mention!", activity.From.Name)
		default:
			return nil
		}

		a.SendActivities(ctx, []*adapter.Activity{reply})
		return nil
	}
}

func run(configPath string, registerWebhook bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := setup.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	collector := metrics.NewMetricsCollector()
	startMonitoring(config.MetricsAddr, collector)

	client, err := twitter.NewClient(&twitter.ClientConfig{
		Credentials: config.Credentials(),
		RateLimiter: rate.NewLimiter(rate.Every(time.Second), 15),
	})
	if err != nil {
		return fmt.Errorf("create twitter client: %w", err)
	}

	manager, err := webhook.NewManager(&webhook.ManagerConfig{
		Credentials: config.Credentials(),
		Environment: config.Environment,
	})
	if err != nil {
		return fmt.Errorf("create webhook manager: %w", err)
	}

	bot, err := adapter.New(ctx, &adapter.Config{
		Client:  client,
		Manager: manager,
		Metrics: collector,
	})
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}

	server, err := webhook.NewServer(&webhook.ServerConfig{
		Addr:           config.ServerAddr,
		Path:           config.WebhookPath,
		ConsumerSecret: config.ConsumerSecret,
		Processor:      bot.Processor(echoLogic(bot)),
	})
	if err != nil {
		return fmt.Errorf("create webhook server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if registerWebhook {
		g.Go(func() error {
			if config.WebhookURL == "" {
				return fmt.Errorf("webhook registration requested but no webhook URL configured")
			}
			// The server must be answering CRC challenges before Twitter
			// will accept the registration.
			bootstrapStart := time.Now()
			err := setup.Bootstrap(ctx, manager, config.WebhookURL)
			collector.RecordLatency(metrics.MetricSetupProcess, time.Since(bootstrapStart))
			return err
		})
	}

	slog.Info("adapter running",
		"addr", config.ServerAddr,
		"path", config.WebhookPath,
		"environment", config.Environment,
	)
	return g.Wait()
}

func main() {
	var (
		configPath      string
		registerWebhook bool
		jsonLogs        bool
	)

	rootCmd := &cobra.Command{
		Use:   "adapter",
		Short: "Twitter Account Activity bot adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDefault(logger.Config{
				Level:      slog.LevelInfo,
				Output:     os.Stdout,
				JSONFormat: jsonLogs,
			})
			return run(configPath, registerWebhook)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().BoolVar(&registerWebhook, "register-webhook", false, "register the webhook and subscribe on startup")
	rootCmd.Flags().BoolVar(&jsonLogs, "json-logs", true, "emit JSON formatted logs")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("adapter exited", "error", err)
		os.Exit(1)
	}
}
