// Package classifier turns inbound Telegram messages into attachments.
package classifier

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maneesh/mediadrop/internal/models"
)

// ErrUnsupported is returned for messages that carry no recognized media.
var ErrUnsupported = errors.New("unsupported attachment")

// Classify maps msg to an attachment. Animations are checked before
// documents because Telegram fills both fields for GIFs.
func Classify(msg *tgbotapi.Message) (models.Attachment, error) {
	if msg == nil {
		return models.Attachment{}, ErrUnsupported
	}

	switch {
	case len(msg.Photo) > 0:
		// sizes are ordered smallest first
		largest := msg.Photo[len(msg.Photo)-1]
		return captioned(models.CategoryPhoto, largest.FileID, msg.Caption)
	case msg.Video != nil:
		return captioned(models.CategoryVideo, msg.Video.FileID, msg.Caption)
	case msg.Audio != nil:
		return plain(models.CategoryAudio, msg.Audio.FileID)
	case msg.Voice != nil:
		return plain(models.CategoryVoice, msg.Voice.FileID)
	case msg.Animation != nil:
		return plain(models.CategoryAnimation, msg.Animation.FileID)
	case msg.Document != nil:
		return plain(models.CategoryDocument, msg.Document.FileID)
	case msg.Sticker != nil:
		return plain(models.CategorySticker, msg.Sticker.FileID)
	}
	return models.Attachment{}, ErrUnsupported
}

func captioned(c models.Category, fileID, caption string) (models.Attachment, error) {
	if fileID == "" {
		return models.Attachment{}, ErrUnsupported
	}
	return models.Attachment{Type: c, FileID: fileID, Caption: caption}, nil
}

func plain(c models.Category, fileID string) (models.Attachment, error) {
	return captioned(c, fileID, "")
}
