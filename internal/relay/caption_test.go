package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tgrelay/internal/domain"
)

func TestCaption_Supplied(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	got := Caption(&domain.VideoRef{Caption: "  New track "}, now)
	assert.Equal(t, "  New track ", got, "supplied caption is used verbatim")
}

func TestCaption_Fallback(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Video uploaded via Telegram on 3/7/2026", Caption(&domain.VideoRef{}, now))
	assert.Equal(t, "Video uploaded via Telegram on 3/7/2026", Caption(nil, now))
}

func TestCaption_FallbackTracksClock(t *testing.T) {
	a := Caption(nil, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	b := Caption(nil, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Video uploaded via Telegram on 12/31/2026", a)
	assert.Equal(t, "Video uploaded via Telegram on 1/1/2027", b)
}
