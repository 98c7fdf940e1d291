package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// WebhookHandler receives updates pushed by Telegram. The path secret keeps
// strangers from injecting updates.
type WebhookHandler struct {
	secret  string
	updates UpdateHandler
	logger  *slog.Logger
}

func NewWebhookHandler(secret string, updates UpdateHandler, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		secret:  secret,
		updates: updates,
		logger:  logger.With("component", "webhook"),
	}
}

// ServeHTTP handles POST /telegram/{secret}
func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "telegram_webhook",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if subtle.ConstantTimeCompare([]byte(mux.Vars(r)["secret"]), []byte(wh.secret)) != 1 {
		http.NotFound(w, r)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		span.RecordError(err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("update_id", update.UpdateID))

	// Telegram retries on a non-2xx answer, so the handler runs to completion
	// even if the request is dropped.
	wh.updates.HandleUpdate(context.WithoutCancel(ctx), update)
	w.WriteHeader(http.StatusOK)
}
