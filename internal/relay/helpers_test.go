package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"tgrelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentNote struct {
	ChatID string
	Text   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []sentNote
}

func (n *recordingNotifier) Notify(_ context.Context, chatID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, sentNote{ChatID: chatID, Text: text})
}

func (n *recordingNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notes))
	for i, s := range n.notes {
		out[i] = s.Text
	}
	return out
}

type stubResolver struct {
	mu    sync.Mutex
	url   string
	err   error
	calls []string
}

func (r *stubResolver) FileURL(_ context.Context, fileID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fileID)
	if r.err != nil {
		return "", r.err
	}
	return r.url, nil
}

type publishCall struct {
	Path        string
	Caption     string
	FileExisted bool
	Content     []byte
}

type stubPublisher struct {
	mu    sync.Mutex
	err   error
	panic bool
	calls []publishCall
}

func (p *stubPublisher) Publish(_ context.Context, path, caption string) error {
	data, readErr := os.ReadFile(path)
	p.mu.Lock()
	p.calls = append(p.calls, publishCall{Path: path, Caption: caption, FileExisted: readErr == nil, Content: data})
	p.mu.Unlock()
	if p.panic {
		panic("publisher exploded")
	}
	return p.err
}

type relayRecorder struct {
	mu      sync.Mutex
	updates []domain.InboundUpdate
}

func (r *relayRecorder) Run(_ context.Context, u domain.InboundUpdate) domain.RelayOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return domain.RelayOutcome{Status: domain.OutcomeSuccess}
}

var errBoom = errors.New("boom")

// videoServer serves body for every request.
func videoServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func videoUpdate(chatID, fileID, caption string) domain.InboundUpdate {
	return domain.InboundUpdate{
		ConversationID: chatID,
		Video:          &domain.VideoRef{FileID: fileID, Caption: caption},
	}
}
