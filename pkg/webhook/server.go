package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/alitto/pond/v2"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/botfuse/twitter-adapter/pkg/twitter"
)

// DeliveryProcessor handles one parsed webhook delivery. Events inside a
// delivery are processed sequentially by the implementation; the server
// only bounds how many deliveries are in flight at once.
type DeliveryProcessor interface {
	ProcessDelivery(ctx context.Context, delivery *twitter.WebhookDelivery) error
}

type ServerConfig struct {
	Addr string
	// Path is the webhook route. Defaults to /webhook.
	Path string
	// ConsumerSecret keys the CRC challenge response.
	ConsumerSecret string
	Processor      DeliveryProcessor
	// Concurrency bounds in-flight deliveries. Defaults to 8.
	Concurrency int
}

// Server answers Twitter's CRC handshake and dispatches event deliveries to
// the processor. It always answers deliveries with 200 once processing is
// done; Twitter deactivates webhooks that fail their deliveries, so
// processing errors are logged rather than surfaced.
type Server struct {
	addr           string
	path           string
	consumerSecret string
	processor      DeliveryProcessor
	pool           pond.Pool
	router         *gin.Engine
}

func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil || config.Processor == nil || config.ConsumerSecret == "" {
		return nil, twitter.ErrInvalidConfig
	}

	path := config.Path
	if path == "" {
		path = "/webhook"
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	s := &Server{
		addr:           config.Addr,
		path:           path,
		consumerSecret: config.ConsumerSecret,
		processor:      config.Processor,
		pool:           pond.NewPool(concurrency),
	}

	router := gin.Default()
	router.GET(path, s.handleCRC)
	router.POST(path, s.handleDelivery)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router = router

	return s, nil
}

// Handler exposes the router for tests and for embedding in a larger mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleCRC(c *gin.Context) {
	token := c.Query("crc_token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing crc_token"})
		return
	}
	c.JSON(http.StatusOK, ValidateWebhook(token, s.consumerSecret))
}

func (s *Server) handleDelivery(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var delivery twitter.WebhookDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed delivery body"})
		return
	}

	ctx := c.Request.Context()
	task := s.pool.SubmitErr(func() error {
		return s.processor.ProcessDelivery(ctx, &delivery)
	})
	if err := task.Wait(); err != nil {
		// Twitter disables webhooks whose deliveries fail, so the error
		// stays on our side of the fence.
		slog.Error("delivery processing failed", "for_user_id", delivery.ForUserID, "error", err)
	}

	c.Status(http.StatusOK)
}

// Run serves until the context is cancelled, then shuts down gracefully and
// stops the worker pool.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		s.pool.StopAndWait()
		return nil
	})
	return g.Wait()
}
