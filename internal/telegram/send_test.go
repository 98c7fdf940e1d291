package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maneesh/mediadrop/internal/models"
)

func TestSendersCoverEveryCategory(t *testing.T) {
	for _, c := range models.Categories() {
		assert.NotNil(t, senders[c], "no sender for %s", c)
	}
}

func TestSendConfigPerCategory(t *testing.T) {
	cases := []struct {
		att  models.Attachment
		want any
	}{
		{models.Attachment{Type: models.CategoryPhoto, FileID: "P1", Caption: "cat"}, tgbotapi.PhotoConfig{}},
		{models.Attachment{Type: models.CategoryVideo, FileID: "V1"}, tgbotapi.VideoConfig{}},
		{models.Attachment{Type: models.CategoryAudio, FileID: "A1"}, tgbotapi.AudioConfig{}},
		{models.Attachment{Type: models.CategoryVoice, FileID: "VO1"}, tgbotapi.VoiceConfig{}},
		{models.Attachment{Type: models.CategoryDocument, FileID: "D1"}, tgbotapi.DocumentConfig{}},
		{models.Attachment{Type: models.CategoryAnimation, FileID: "G1"}, tgbotapi.AnimationConfig{}},
		{models.Attachment{Type: models.CategorySticker, FileID: "S1"}, tgbotapi.StickerConfig{}},
	}

	for _, tc := range cases {
		t.Run(tc.att.Type.String(), func(t *testing.T) {
			cfg, err := sendConfig(42, tc.att)
			require.NoError(t, err)
			assert.IsType(t, tc.want, cfg)
		})
	}
}

func TestSendConfigKeepsPhotoCaption(t *testing.T) {
	cfg, err := sendConfig(42, models.Attachment{Type: models.CategoryPhoto, FileID: "P1", Caption: "cat"})
	require.NoError(t, err)

	photo := cfg.(tgbotapi.PhotoConfig)
	assert.Equal(t, int64(42), photo.ChatID)
	assert.Equal(t, tgbotapi.FileID("P1"), photo.File)
	assert.Equal(t, "cat", photo.Caption)
}

func TestSendConfigRejectsUnknownCategory(t *testing.T) {
	_, err := sendConfig(1, models.Attachment{Type: models.Category(200), FileID: "X"})
	assert.Error(t, err)
}

func TestShareLink(t *testing.T) {
	assert.Equal(t, "https://t.me/dropbot?start=abc-123", ShareLink("t.me", "dropbot", "abc-123"))
	assert.Equal(t, "https://t.me/dropbot?start=abc", ShareLink("", "dropbot", "abc"))
	assert.Equal(t, "https://telegram.me/dropbot?start=abc", ShareLink("telegram.me", "dropbot", "abc"))
}
