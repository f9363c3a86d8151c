package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrelay/internal/domain"
)

func TestClassify(t *testing.T) {
	video := &domain.VideoRef{FileID: "F1"}
	tests := []struct {
		name string
		upd  domain.InboundUpdate
		want Route
	}{
		{"start command", domain.InboundUpdate{Text: "/start"}, RouteCommand},
		{"start with bot suffix", domain.InboundUpdate{Text: "/start@relay_bot"}, RouteCommand},
		{"start with payload", domain.InboundUpdate{Text: "/start deep-link"}, RouteCommand},
		{"help command", domain.InboundUpdate{Text: "/help"}, RouteCommand},
		{"plain text", domain.InboundUpdate{Text: "hello"}, RouteText},
		{"unknown slash text", domain.InboundUpdate{Text: "/stop"}, RouteText},
		{"help prefix word", domain.InboundUpdate{Text: "/helpme"}, RouteText},
		{"start prefix word", domain.InboundUpdate{Text: "/starting now"}, RouteText},
		{"video", domain.InboundUpdate{Video: video}, RouteVideo},
		{"video wins over command", domain.InboundUpdate{Text: "/start", Video: video}, RouteVideo},
		{"video without file id", domain.InboundUpdate{Video: &domain.VideoRef{}}, RouteIgnore},
		{"empty", domain.InboundUpdate{}, RouteIgnore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.upd))
			// deterministic
			assert.Equal(t, tt.want, Classify(tt.upd))
		})
	}
}

func newTestRouter() (*Router, *recordingNotifier, *relayRecorder) {
	n := &recordingNotifier{}
	rr := &relayRecorder{}
	return NewRouter(RouterConfig{Notifier: n, Relayer: rr, Logger: testLogger()}), n, rr
}

func TestRouter_StartCommand(t *testing.T) {
	r, n, rr := newTestRouter()

	route := r.Dispatch(context.Background(), domain.InboundUpdate{ConversationID: "C1", Text: "/start"})

	assert.Equal(t, RouteCommand, route)
	require.Len(t, n.notes, 1)
	assert.Equal(t, sentNote{ChatID: "C1", Text: msgWelcome}, n.notes[0])
	assert.Empty(t, rr.updates)
}

func TestRouter_PlainTextPromptsForVideo(t *testing.T) {
	r, n, rr := newTestRouter()

	route := r.Dispatch(context.Background(), domain.InboundUpdate{ConversationID: "C1", Text: "hello"})

	assert.Equal(t, RouteText, route)
	require.Len(t, n.notes, 1)
	assert.Equal(t, msgSendVideo, n.notes[0].Text)
	assert.Empty(t, rr.updates)
}

func TestRouter_VideoDelegatesToRelay(t *testing.T) {
	r, n, rr := newTestRouter()
	upd := videoUpdate("C1", "F1", "New track")

	route := r.Dispatch(context.Background(), upd)

	assert.Equal(t, RouteVideo, route)
	require.Len(t, rr.updates, 1)
	assert.Equal(t, upd, rr.updates[0])
	assert.Empty(t, n.notes, "router itself sends nothing for videos")
}

func TestRouter_IgnoreIsNoop(t *testing.T) {
	r, n, rr := newTestRouter()

	route := r.Dispatch(context.Background(), domain.InboundUpdate{ConversationID: "C1"})

	assert.Equal(t, RouteIgnore, route)
	assert.Empty(t, n.notes)
	assert.Empty(t, rr.updates)
}
