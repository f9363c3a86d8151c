package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
)

// Stager materialises a platform file on local storage.
type Stager interface {
	Fetch(ctx context.Context, ref *domain.VideoRef, relayID string) (*StagedFile, error)
}

// PipelineConfig configures the Pipeline.
type PipelineConfig struct {
	Stager    Stager
	Publisher domain.Publisher
	Notifier  domain.Notifier
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Now       func() time.Time
}

// Pipeline relays one video update: notify started, fetch, publish, notify
// outcome, release the staged file.
type Pipeline struct {
	stager    Stager
	publisher domain.Publisher
	notifier  domain.Notifier
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		stager:    cfg.Stager,
		publisher: cfg.Publisher,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

var errNoVideo = errors.New("update carries no video reference")

// Run executes one relay invocation. Fetch and publish failures, including a
// panicking publisher, end the run with a single failure notification; they
// are never returned. The staged file, if one was created, is released after
// the final notification.
func (p *Pipeline) Run(ctx context.Context, u domain.InboundUpdate) domain.RelayOutcome {
	if !u.HasVideo() {
		return domain.RelayOutcome{Status: domain.OutcomeFailure, Stage: "fetch", Reason: errNoVideo}
	}

	relayID := uuid.NewString()
	start := time.Now()
	log := p.logger.With("relay_id", relayID, "chat_id", u.ConversationID, "file_id", u.Video.FileID)
	if u.ReceivedAt.IsZero() {
		log.Info("relay started", "sender_id", u.SenderID)
	} else {
		log.Info("relay started", "sender_id", u.SenderID, "delivery_lag", start.Sub(u.ReceivedAt).Round(time.Millisecond))
	}

	p.notifier.Notify(ctx, u.ConversationID, msgStarted)

	var outcome domain.RelayOutcome
	staged, err := p.stager.Fetch(ctx, u.Video, relayID)
	if err != nil {
		outcome = domain.RelayOutcome{Status: domain.OutcomeFailure, Stage: "fetch", Reason: err}
	} else {
		defer staged.Release()

		caption := Caption(u.Video, p.now())
		if err := p.publish(ctx, staged.Path, caption); err != nil {
			outcome = domain.RelayOutcome{
				Status: domain.OutcomeFailure,
				Stage:  "publish",
				Reason: &domain.PublishError{Path: staged.Path, Err: err},
			}
		} else {
			outcome = domain.RelayOutcome{Status: domain.OutcomeSuccess}
		}
	}

	elapsed := time.Since(start)
	p.metrics.ObserveRelay(string(outcome.Status), outcome.Stage, elapsed.Seconds())

	if outcome.Succeeded() {
		log.Info("relay succeeded", "elapsed", elapsed)
		p.notifier.Notify(ctx, u.ConversationID, msgSuccess)
	} else {
		log.Error("relay failed", "stage", outcome.Stage, "err", outcome.Reason, "elapsed", elapsed)
		p.notifier.Notify(ctx, u.ConversationID, msgFailure)
	}
	return outcome
}

// publish calls the publisher, turning a panic into an error.
func (p *Pipeline) publish(ctx context.Context, path, caption string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("publisher panicked", "path", path, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()
	return p.publisher.Publish(ctx, path, caption)
}
