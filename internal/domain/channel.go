package domain

import "context"

// Notifier sends a short status message to a conversation. Delivery failures
// are logged by the implementation and never returned.
type Notifier interface {
	Notify(ctx context.Context, conversationID string, text string)
}

// FileResolver resolves an opaque platform file id to a transient download URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Publisher uploads a staged file with its caption to the destination platform.
type Publisher interface {
	Publish(ctx context.Context, path string, caption string) error
}
