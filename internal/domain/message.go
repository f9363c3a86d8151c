package domain

import "time"

// InboundUpdate is one event delivered by the source chat platform, reduced to
// the fields the relay acts on. It is consumed once and never persisted.
type InboundUpdate struct {
	UpdateID       int
	ConversationID string
	SenderID       string
	Text           string
	Video          *VideoRef
	ReceivedAt     time.Time
}

// VideoRef points at a video attachment hosted by the source platform.
type VideoRef struct {
	FileID   string
	Caption  string
	MimeType string
	FileName string
}

// HasVideo reports whether the update carries a video attachment.
func (u InboundUpdate) HasVideo() bool {
	return u.Video != nil && u.Video.FileID != ""
}

// OutcomeStatus is the terminal state of one relay invocation.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// RelayOutcome selects the final notification text. Reason and Stage are only
// logged; the user sees one generic failure message.
type RelayOutcome struct {
	Status OutcomeStatus
	Stage  string // fetch | publish, empty on success
	Reason error
}

func (o RelayOutcome) Succeeded() bool { return o.Status == OutcomeSuccess }
