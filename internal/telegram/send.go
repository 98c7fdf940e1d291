package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maneesh/mediadrop/internal/models"
)

type sendFunc func(chatID int64, att models.Attachment) tgbotapi.Chattable

// senders maps every category to the Telegram send call that re-delivers it
// by file id. The array length follows models.NumCategories, so adding a
// category without a sender leaves a nil slot that TestSendersCoverEveryCategory
// reports.
var senders = [models.NumCategories]sendFunc{
	models.CategoryPhoto: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		c := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(att.FileID))
		c.Caption = att.Caption
		return c
	},
	models.CategoryVideo: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		c := tgbotapi.NewVideo(chatID, tgbotapi.FileID(att.FileID))
		c.Caption = att.Caption
		return c
	},
	models.CategoryAudio: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		return tgbotapi.NewAudio(chatID, tgbotapi.FileID(att.FileID))
	},
	models.CategoryVoice: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		return tgbotapi.NewVoice(chatID, tgbotapi.FileID(att.FileID))
	},
	models.CategoryDocument: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		return tgbotapi.NewDocument(chatID, tgbotapi.FileID(att.FileID))
	},
	models.CategoryAnimation: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		return tgbotapi.NewAnimation(chatID, tgbotapi.FileID(att.FileID))
	},
	models.CategorySticker: func(chatID int64, att models.Attachment) tgbotapi.Chattable {
		return tgbotapi.NewSticker(chatID, tgbotapi.FileID(att.FileID))
	},
}

func sendConfig(chatID int64, att models.Attachment) (tgbotapi.Chattable, error) {
	if !att.Type.Valid() {
		return nil, fmt.Errorf("unknown attachment category %d", att.Type)
	}
	return senders[att.Type](chatID, att), nil
}
