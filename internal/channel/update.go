package channel

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgrelay/internal/domain"
)

// ToInboundUpdate reduces a Bot API update to the relay's view of it. Only
// regular messages are considered; anything else yields an update with no
// text and no video, which the router ignores.
func ToInboundUpdate(update tgbotapi.Update) domain.InboundUpdate {
	in := domain.InboundUpdate{UpdateID: update.UpdateID, ReceivedAt: time.Now()}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return in
	}

	in.ConversationID = strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		in.SenderID = strconv.FormatInt(msg.From.ID, 10)
	}
	in.Text = msg.Text
	if msg.Date != 0 {
		in.ReceivedAt = time.Unix(int64(msg.Date), 0)
	}

	switch {
	case msg.Video != nil:
		in.Video = &domain.VideoRef{
			FileID:   msg.Video.FileID,
			Caption:  msg.Caption,
			MimeType: msg.Video.MimeType,
		}
	case msg.Document != nil && strings.HasPrefix(strings.ToLower(msg.Document.MimeType), "video/"):
		in.Video = &domain.VideoRef{
			FileID:   msg.Document.FileID,
			Caption:  msg.Caption,
			MimeType: msg.Document.MimeType,
			FileName: msg.Document.FileName,
		}
	}
	return in
}
