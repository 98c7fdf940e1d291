package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/models"
	"github.com/maneesh/mediadrop/internal/storage"
)

var tracer = otel.Tracer("mediadrop-handlers")

// BundleHandler serves stored bundles read-only.
type BundleHandler struct {
	store  storage.BundleStore
	logger *slog.Logger
}

func NewBundleHandler(store storage.BundleStore, logger *slog.Logger) *BundleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleHandler{store: store, logger: logger.With("component", "http")}
}

// BundleResponse is the body of GET /bundles/{token}.
type BundleResponse struct {
	Token           string              `json:"token"`
	AttachmentCount int                 `json:"attachment_count"`
	Attachments     []models.Attachment `json:"attachments"`
}

// ServeHTTP handles GET /bundles/{token}
func (bh *BundleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "get_bundle",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	tok := mux.Vars(r)["token"]
	if tok == "" {
		http.Error(w, "missing token in path", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("token", tok))

	atts, err := bh.store.Get(ctx, tok)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "bundle not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.RecordError(err)
		bh.logger.Error("bundle lookup failed", "token", tok, "error", err)
		http.Error(w, "failed to load bundle", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("attachment_count", len(atts)))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(BundleResponse{
		Token:           tok,
		AttachmentCount: len(atts),
		Attachments:     atts,
	}); err != nil {
		bh.logger.Warn("failed to write bundle response", "token", tok, "error", err)
	}
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
