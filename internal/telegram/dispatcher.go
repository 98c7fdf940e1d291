package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/classifier"
	"github.com/maneesh/mediadrop/internal/controller"
)

// Dispatcher routes inbound updates to the controller and answers through
// a Messenger. Users only ever see the fixed texts in copy.go.
type Dispatcher struct {
	ctl        *controller.Controller
	msg        Messenger
	linkHost   string
	channelURL string
	logger     *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithLinkHost(host string) DispatcherOption {
	return func(d *Dispatcher) {
		d.linkHost = host
	}
}

// WithChannelURL adds a "Join Channel" button to the delivery notice.
func WithChannelURL(u string) DispatcherOption {
	return func(d *Dispatcher) {
		d.channelURL = u
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func NewDispatcher(ctl *controller.Controller, msg Messenger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		ctl:      ctl,
		msg:      msg,
		linkHost: DefaultLinkHost,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// HandleUpdate handles one update. It never returns an error; failures are
// logged and, where the user is waiting, answered with a plain message.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	ctx, span := tracer.Start(ctx, "telegram.handle_update",
		trace.WithAttributes(attribute.Int("update_id", u.UpdateID)),
	)
	defer span.End()

	switch {
	case u.CallbackQuery != nil:
		d.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		d.handleMessage(ctx, u.Message)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := d.msg.AnswerCallback(ctx, cq.ID); err != nil {
		d.logger.Warn("answer callback failed", "error", err)
	}
	if cq.Data != callbackUpload || cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	d.beginUpload(ctx, cq.From.ID, cq.Message.Chat.ID)
}

func (d *Dispatcher) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	owner, chat := m.From.ID, m.Chat.ID

	if m.IsCommand() {
		switch m.Command() {
		case cmdStart:
			arg := strings.TrimSpace(m.CommandArguments())
			if arg == "" || arg == startArgNone {
				d.welcome(ctx, chat)
				return
			}
			d.redeem(ctx, chat, arg)
		case cmdUpload:
			d.beginUpload(ctx, owner, chat)
		case cmdCancel:
			d.cancel(ctx, owner, chat)
		default:
			d.reply(ctx, chat, textNoSession, nil)
		}
		return
	}

	if strings.TrimSpace(m.Text) == ConfirmMarker {
		d.commit(ctx, owner, chat)
		return
	}

	if !d.ctl.Active(owner) {
		d.reply(ctx, chat, textNoSession, nil)
		return
	}
	d.submit(ctx, owner, chat, m)
}

func (d *Dispatcher) welcome(ctx context.Context, chat int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(textStartButton, callbackUpload),
		),
	)
	d.reply(ctx, chat, fmt.Sprintf(textWelcome, humanDelay(d.ctl.PurgeDelay())), keyboard)
}

func (d *Dispatcher) beginUpload(ctx context.Context, owner, chat int64) {
	d.ctl.BeginUpload(owner)
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ConfirmMarker)),
	)
	keyboard.ResizeKeyboard = true
	d.reply(ctx, chat, textUploadPrompt, keyboard)
}

func (d *Dispatcher) cancel(ctx context.Context, owner, chat int64) {
	if !d.ctl.Abandon(owner) {
		d.reply(ctx, chat, textNoSession, tgbotapi.NewRemoveKeyboard(false))
		return
	}
	d.reply(ctx, chat, textCancelled, tgbotapi.NewRemoveKeyboard(false))
}

func (d *Dispatcher) submit(ctx context.Context, owner, chat int64, m *tgbotapi.Message) {
	_, n, err := d.ctl.SubmitAttachment(owner, m)
	switch {
	case err == nil:
		d.reply(ctx, chat, fmt.Sprintf(textMediaSaved, n), nil)
	case errors.Is(err, classifier.ErrUnsupported):
		d.reply(ctx, chat, textUnsupported, nil)
	case errors.Is(err, controller.ErrNoActiveSession):
		// the session was committed or replaced after the Active check
		d.reply(ctx, chat, textNoSession, nil)
	default:
		d.logger.Error("submit failed", "owner", owner, "error", err)
		d.reply(ctx, chat, textUnsupported, nil)
	}
}

func (d *Dispatcher) commit(ctx context.Context, owner, chat int64) {
	removeKeyboard := tgbotapi.NewRemoveKeyboard(false)

	tok, err := d.ctl.Commit(ctx, owner)
	switch {
	case err == nil:
		link := ShareLink(d.linkHost, d.msg.Username(), tok)
		d.reply(ctx, chat, fmt.Sprintf(textUploadComplete, link), removeKeyboard)
	case errors.Is(err, controller.ErrEmptyCommit):
		d.reply(ctx, chat, textNothingUpload, removeKeyboard)
	case errors.Is(err, controller.ErrNoActiveSession):
		d.reply(ctx, chat, textNoSession, removeKeyboard)
	default:
		d.logger.Error("commit failed", "owner", owner, "error", err)
		d.reply(ctx, chat, textCommitFailed, nil)
	}
}

// redeem delivers every attachment of tok, then the auto-delete notice, and
// hands all delivered message ids to the purge scheduler.
func (d *Dispatcher) redeem(ctx context.Context, chat int64, tok string) {
	atts, err := d.ctl.Redeem(ctx, tok)
	if errors.Is(err, controller.ErrTokenNotFound) {
		d.reply(ctx, chat, textNotFound, nil)
		return
	}
	if err != nil {
		d.logger.Error("redeem failed", "token", tok, "error", err)
		d.reply(ctx, chat, textRedeemFailed, nil)
		return
	}

	delivered := make([]int, 0, len(atts)+1)
	for i, att := range atts {
		id, err := d.msg.SendAttachment(ctx, chat, att)
		if err != nil {
			d.logger.Warn("attachment delivery failed",
				"chat_id", chat, "token", tok, "index", i, "category", att.Type, "error", err)
			continue
		}
		delivered = append(delivered, id)
	}

	noticeID, err := d.msg.SendText(ctx, chat, fmt.Sprintf(textNotice, humanDelay(d.ctl.PurgeDelay())), d.noticeMarkup())
	if err != nil {
		d.logger.Warn("delivery notice failed", "chat_id", chat, "token", tok, "error", err)
	} else {
		delivered = append(delivered, noticeID)
	}

	if _, err := d.ctl.TrackDelivery(chat, delivered, tok); err != nil {
		d.logger.Error("purge not scheduled", "chat_id", chat, "token", tok, "messages", len(delivered), "error", err)
	}
}

func (d *Dispatcher) noticeMarkup() any {
	if d.channelURL == "" {
		return nil
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(textChannelButton, d.channelURL),
		),
	)
}

func (d *Dispatcher) reply(ctx context.Context, chat int64, text string, markup any) {
	if _, err := d.msg.SendText(ctx, chat, text, markup); err != nil {
		d.logger.Warn("reply failed", "chat_id", chat, "error", err)
	}
}
