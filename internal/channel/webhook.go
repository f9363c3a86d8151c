package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
	"tgrelay/internal/relay"
	"tgrelay/internal/worker"
)

const maxUpdateBytes = 1 << 20

// UpdateDispatcher reacts to one inbound update.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u domain.InboundUpdate) relay.Route
}

// WebhookConfig configures the webhook server.
type WebhookConfig struct {
	Host            string
	Port            int
	Path            string // webhook URL path (default: /webhook/telegram)
	MetricsPath     string // empty disables /metrics
	Dispatcher      UpdateDispatcher
	Executor        *worker.Executor
	Metrics         *metrics.Collector
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Webhook receives Bot API updates over HTTP. Every delivery is acknowledged
// with 200 before its content is processed; processing runs on the executor.
type Webhook struct {
	host            string
	port            int
	path            string
	metricsPath     string
	dispatcher      UpdateDispatcher
	executor        *worker.Executor
	metrics         *metrics.Collector
	shutdownTimeout time.Duration
	logger          *slog.Logger
	server          *http.Server
}

// NewWebhook creates a webhook server.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook/telegram"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Executor == nil {
		cfg.Executor = worker.NewExecutor(worker.Config{Metrics: cfg.Metrics, Logger: cfg.Logger})
	}
	return &Webhook{
		host:            cfg.Host,
		port:            cfg.Port,
		path:            cfg.Path,
		metricsPath:     cfg.MetricsPath,
		dispatcher:      cfg.Dispatcher,
		executor:        cfg.Executor,
		metrics:         cfg.Metrics,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
	}
}

// Routes returns the HTTP handler: health check, webhook and optional metrics.
func (w *Webhook) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", w.handleHealth)
	r.Post(w.path, w.handleUpdate)
	if w.metricsPath != "" {
		r.Method(http.MethodGet, w.metricsPath, w.metrics.Handler())
	}
	return r
}

// Start serves HTTP until ctx is cancelled, then stops accepting requests and
// waits for detached work so staged files get released.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              net.JoinHostPort(w.host, strconv.Itoa(w.port)),
		Handler:           w.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.server.Addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook shutdown: %w", err)
		}
		if err := w.executor.Wait(shutdownCtx); err != nil {
			w.logger.Warn("shutdown with relays in flight", "err", err)
			return err
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	io.WriteString(rw, "Service is healthy")
}

func (w *Webhook) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	defer r.Body.Close()

	// Acknowledge first: the platform retries deliveries that are slow or
	// non-2xx, so malformed bodies are acked too and only logged.
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	io.WriteString(rw, "OK")
	if f, ok := rw.(http.Flusher); ok {
		f.Flush()
	}

	if readErr != nil {
		w.logger.Warn("webhook body unreadable", "err", readErr)
		return
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		w.logger.Warn("webhook body is not a valid update", "err", err, "body_len", len(body))
		return
	}

	in := ToInboundUpdate(update)
	w.logger.Debug("webhook received", "update_id", in.UpdateID, "chat_id", in.ConversationID)

	w.executor.Go(r.Context(), fmt.Sprintf("update-%d", in.UpdateID), func(ctx context.Context) error {
		w.dispatcher.Dispatch(ctx, in)
		return nil
	})
}
