package relay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
)

type pipelineFixture struct {
	pipeline  *Pipeline
	notifier  *recordingNotifier
	resolver  *stubResolver
	publisher *stubPublisher
	dir       string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	srv := videoServer(t, []byte("video-payload"))
	fx := &pipelineFixture{
		notifier:  &recordingNotifier{},
		resolver:  &stubResolver{url: srv.URL + "/file/botT/videos/file_1.mp4"},
		publisher: &stubPublisher{},
		dir:       t.TempDir(),
	}
	fetcher := NewFetcher(FetcherConfig{Resolver: fx.resolver, Dir: fx.dir, Logger: testLogger()})
	fx.pipeline = NewPipeline(PipelineConfig{
		Stager:    fetcher,
		Publisher: fx.publisher,
		Notifier:  fx.notifier,
		Metrics:   metrics.New(),
		Logger:    testLogger(),
		Now:       func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
	})
	return fx
}

func TestPipeline_Success(t *testing.T) {
	fx := newPipelineFixture(t)

	out := fx.pipeline.Run(context.Background(), videoUpdate("C1", "F1", "New track"))

	assert.True(t, out.Succeeded())
	assert.Equal(t, []string{msgStarted, msgSuccess}, fx.notifier.texts())
	for _, n := range fx.notifier.notes {
		assert.Equal(t, "C1", n.ChatID)
	}
	assert.Equal(t, []string{"F1"}, fx.resolver.calls)

	require.Len(t, fx.publisher.calls, 1)
	call := fx.publisher.calls[0]
	assert.Equal(t, "New track", call.Caption)
	assert.True(t, call.FileExisted, "file must exist while publishing")
	assert.Equal(t, "video-payload", string(call.Content))

	_, err := os.Stat(call.Path)
	assert.True(t, os.IsNotExist(err), "staged file must be deleted")
	assert.Empty(t, dirEntries(t, fx.dir))
}

func TestPipeline_FallbackCaption(t *testing.T) {
	fx := newPipelineFixture(t)

	fx.pipeline.Run(context.Background(), videoUpdate("C1", "F1", ""))

	require.Len(t, fx.publisher.calls, 1)
	assert.Equal(t, "Video uploaded via Telegram on 10/19/2026", fx.publisher.calls[0].Caption)
}

func TestPipeline_PublishFailure(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.publisher.err = errBoom

	out := fx.pipeline.Run(context.Background(), videoUpdate("C1", "F1", "New track"))

	assert.False(t, out.Succeeded())
	assert.Equal(t, "publish", out.Stage)
	var pe *domain.PublishError
	assert.True(t, errors.As(out.Reason, &pe))
	assert.ErrorIs(t, out.Reason, errBoom)

	assert.Equal(t, []string{msgStarted, msgFailure}, fx.notifier.texts())
	require.Len(t, fx.publisher.calls, 1)
	_, err := os.Stat(fx.publisher.calls[0].Path)
	assert.True(t, os.IsNotExist(err), "staged file must be deleted after publish failure")
	assert.Empty(t, dirEntries(t, fx.dir))
}

func TestPipeline_FetchFailure(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.resolver.err = errBoom

	out := fx.pipeline.Run(context.Background(), videoUpdate("C1", "F1", "New track"))

	assert.False(t, out.Succeeded())
	assert.Equal(t, "fetch", out.Stage)
	var fe *domain.FetchError
	assert.True(t, errors.As(out.Reason, &fe))

	assert.Equal(t, []string{msgStarted, msgFailure}, fx.notifier.texts())
	assert.Empty(t, fx.publisher.calls)
	assert.Empty(t, dirEntries(t, fx.dir))
}

func TestPipeline_PublisherPanicEndsInFailure(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.publisher.panic = true

	var out domain.RelayOutcome
	assert.NotPanics(t, func() {
		out = fx.pipeline.Run(context.Background(), videoUpdate("C1", "F1", "x"))
	})

	assert.False(t, out.Succeeded())
	assert.Equal(t, "publish", out.Stage)
	var pe *domain.PublishError
	assert.True(t, errors.As(out.Reason, &pe))
	assert.ErrorContains(t, out.Reason, "publisher exploded")

	assert.Equal(t, []string{msgStarted, msgFailure}, fx.notifier.texts())
	assert.Empty(t, dirEntries(t, fx.dir))
}

func TestPipeline_NoVideo(t *testing.T) {
	fx := newPipelineFixture(t)

	out := fx.pipeline.Run(context.Background(), domain.InboundUpdate{ConversationID: "C1", Text: "hi"})

	assert.False(t, out.Succeeded())
	assert.Empty(t, fx.notifier.notes)
	assert.Empty(t, fx.resolver.calls)
}

// Router + pipeline end to end for a text-only update: nothing staged.
func TestRouterWithPipeline_TextCreatesNothing(t *testing.T) {
	fx := newPipelineFixture(t)
	r := NewRouter(RouterConfig{Notifier: fx.notifier, Relayer: fx.pipeline, Logger: testLogger()})

	r.Dispatch(context.Background(), domain.InboundUpdate{ConversationID: "C1", Text: "hello"})

	assert.Equal(t, []string{msgSendVideo}, fx.notifier.texts())
	assert.Empty(t, fx.resolver.calls)
	assert.Empty(t, fx.publisher.calls)
	assert.Empty(t, dirEntries(t, fx.dir))
}

func TestPipeline_LogsSenderAndDeliveryLag(t *testing.T) {
	fx := newPipelineFixture(t)
	var buf bytes.Buffer
	fx.pipeline.logger = slog.New(slog.NewTextHandler(&buf, nil))

	u := videoUpdate("C1", "F1", "x")
	u.SenderID = "4242"
	u.ReceivedAt = time.Now().Add(-2 * time.Second)
	u.Video.MimeType = "video/quicktime"
	fx.resolver.url = strings.TrimSuffix(fx.resolver.url, ".mp4")

	out := fx.pipeline.Run(context.Background(), u)
	require.True(t, out.Succeeded())

	logs := buf.String()
	assert.Contains(t, logs, "sender_id=4242")
	assert.Contains(t, logs, "delivery_lag=2")
	require.Len(t, fx.publisher.calls, 1)
	assert.Equal(t, ".mov", filepath.Ext(fx.publisher.calls[0].Path))
}
