package telegram

import (
	"fmt"
	"time"
)

// ConfirmMarker ends an upload session.
const ConfirmMarker = "✅"

const (
	cmdStart  = "start"
	cmdUpload = "upload"
	cmdCancel = "cancel"

	callbackUpload = "/upload"

	// a start parameter of "None" comes from links built without a token
	startArgNone = "None"
)

// All outbound text is sent with HTML parse mode.
const (
	textWelcome = "<b>📤 Welcome to the multi-file sharing bot!</b>\n\n" +
		"Upload any mix of <b>photos, videos, documents, stickers, audio, voice notes and animations</b> " +
		"and get one <b>shareable link</b> for the whole set.\n\n" +
		"⚡ <b>How to use:</b>\n" +
		"1. Send <code>/upload</code> to start a session.\n" +
		"2. Send your media one by one.\n" +
		"3. Send " + ConfirmMarker + " when you are done.\n" +
		"4. Share the link you get back.\n\n" +
		"⏳ Files delivered through a link are removed from the chat after %s. " +
		"The link restores them any time."

	textStartButton    = "📤 Start Uploading"
	textUploadPrompt   = "👉 Send me the media you want to upload. When you are done, send " + ConfirmMarker + "."
	textMediaSaved     = "✅ Media saved (%d so far). Send more or send " + ConfirmMarker + " to finish."
	textUnsupported    = "❌ Unsupported input. Please send media files only."
	textUploadComplete = "✅ Upload complete!\nShare this link:\n%s"
	textNothingUpload  = "❌ No media was uploaded."
	textCommitFailed   = "⚠️ Could not save your upload. Please send " + ConfirmMarker + " again."
	textNoSession      = "No upload in progress. Send /upload to start one."
	textCancelled      = "🚫 Upload cancelled. Nothing was saved."
	textNotFound       = "❌ No media found for this link."
	textRedeemFailed   = "⚠️ Could not load these files right now. Please try the link again later."
	textNotice         = "⚠️ <b>Note:</b> these files will be deleted from this chat after <b>%s</b> to prevent spam."
	textChannelButton  = "🔗 Join Channel"
	textPurged         = "🗑️ Your files were deleted from this chat.\nTap below to restore them."
	textRestoreButton  = "🔄 Restore Files"
)

// humanDelay renders d the way the notices mention it, e.g. "10 minutes".
func humanDelay(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second:
		return plural(int(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
