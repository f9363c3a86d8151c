package relay

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
)

// Route is the classification of an inbound update.
type Route string

const (
	RouteVideo   Route = "video"
	RouteCommand Route = "command"
	RouteText    Route = "text"
	RouteIgnore  Route = "ignore"
)

// commandTokens are matched as prefixes, so "/start@my_bot" and "/start foo" count.
var commandTokens = []string{"/start", "/help"}

// Classify maps an update to exactly one route. A video wins over any text;
// command-prefixed text is never treated as plain text.
func Classify(u domain.InboundUpdate) Route {
	switch {
	case u.HasVideo():
		return RouteVideo
	case isCommand(u.Text):
		return RouteCommand
	case u.Text != "":
		return RouteText
	default:
		return RouteIgnore
	}
}

// isCommand matches a whole command word, optionally addressed to the bot
// ("/start@relay_bot") or followed by arguments ("/start payload").
func isCommand(text string) bool {
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	return slices.Contains(commandTokens, word)
}

// Relayer runs the relay pipeline for one video update.
type Relayer interface {
	Run(ctx context.Context, u domain.InboundUpdate) domain.RelayOutcome
}

// RouterConfig configures the Router.
type RouterConfig struct {
	Notifier domain.Notifier
	Relayer  Relayer
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Router classifies updates and dispatches them.
type Router struct {
	notifier domain.Notifier
	relayer  Relayer
	metrics  *metrics.Collector
	logger   *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		notifier: cfg.Notifier,
		relayer:  cfg.Relayer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Dispatch reacts to one update and returns the route it took. Replying
// branches notify exactly once; ignored updates have no side effects.
func (r *Router) Dispatch(ctx context.Context, u domain.InboundUpdate) Route {
	route := Classify(u)
	r.metrics.ObserveUpdate(string(route))

	switch route {
	case RouteVideo:
		r.logger.Info("video received", "chat_id", u.ConversationID, "file_id", u.Video.FileID)
		r.relayer.Run(ctx, u)
	case RouteCommand:
		r.notifier.Notify(ctx, u.ConversationID, msgWelcome)
	case RouteText:
		r.notifier.Notify(ctx, u.ConversationID, msgSendVideo)
	default:
		r.logger.Debug("update ignored", "update_id", u.UpdateID, "chat_id", u.ConversationID)
	}
	return route
}
