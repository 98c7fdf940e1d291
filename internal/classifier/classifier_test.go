package classifier

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maneesh/mediadrop/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want models.Attachment
	}{
		{
			name: "photo keeps largest size and caption",
			msg: &tgbotapi.Message{
				Photo: []tgbotapi.PhotoSize{
					{FileID: "small", Width: 90},
					{FileID: "large", Width: 1280},
				},
				Caption: "cat",
			},
			want: models.Attachment{Type: models.CategoryPhoto, FileID: "large", Caption: "cat"},
		},
		{
			name: "video keeps caption",
			msg:  &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "V1"}, Caption: "clip"},
			want: models.Attachment{Type: models.CategoryVideo, FileID: "V1", Caption: "clip"},
		},
		{
			name: "audio drops caption",
			msg:  &tgbotapi.Message{Audio: &tgbotapi.Audio{FileID: "A1"}, Caption: "ignored"},
			want: models.Attachment{Type: models.CategoryAudio, FileID: "A1"},
		},
		{
			name: "voice",
			msg:  &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "VO1"}},
			want: models.Attachment{Type: models.CategoryVoice, FileID: "VO1"},
		},
		{
			name: "document drops caption",
			msg:  &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "D1"}, Caption: "report"},
			want: models.Attachment{Type: models.CategoryDocument, FileID: "D1"},
		},
		{
			name: "animation wins over document",
			msg: &tgbotapi.Message{
				Animation: &tgbotapi.Animation{FileID: "GIF1"},
				Document:  &tgbotapi.Document{FileID: "GIF1"},
			},
			want: models.Attachment{Type: models.CategoryAnimation, FileID: "GIF1"},
		},
		{
			name: "sticker",
			msg:  &tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "S1"}},
			want: models.Attachment{Type: models.CategorySticker, FileID: "S1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	for name, msg := range map[string]*tgbotapi.Message{
		"nil":          nil,
		"text":         {Text: "hello"},
		"location":     {Location: &tgbotapi.Location{Latitude: 1, Longitude: 2}},
		"empty photo":  {Photo: []tgbotapi.PhotoSize{{FileID: ""}}},
		"empty object": {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(msg)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}
