package relay

import (
	"time"

	"tgrelay/internal/domain"
)

const captionFallbackPrefix = "Video uploaded via Telegram on "

// Caption returns the caption supplied with the video verbatim, or a fallback
// stamped with the date of now (M/D/YYYY).
func Caption(ref *domain.VideoRef, now time.Time) string {
	if ref != nil && ref.Caption != "" {
		return ref.Caption
	}
	return captionFallbackPrefix + now.Format("1/2/2006")
}
