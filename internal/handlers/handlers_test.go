package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maneesh/mediadrop/internal/models"
	"github.com/maneesh/mediadrop/internal/storage"
)

type recordingUpdates struct {
	mu  sync.Mutex
	ids []int
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, u tgbotapi.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, u.UpdateID)
}

type brokenStore struct{ storage.BundleStore }

func (brokenStore) Get(context.Context, string) ([]models.Attachment, error) {
	return nil, errors.New("dial tcp 10.0.0.5:4000: connection refused")
}

func newRouter(store storage.BundleStore, updates UpdateHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", Health).Methods("GET")
	router.Handle("/bundles/{token}", NewBundleHandler(store, nil)).Methods("GET")
	router.Handle("/telegram/{secret}", NewWebhookHandler("s3cret", updates, nil)).Methods("POST")
	return router
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(storage.NewMemoryBundleStore(), &recordingUpdates{}).ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetBundle(t *testing.T) {
	store := storage.NewMemoryBundleStore()
	atts := []models.Attachment{
		{Type: models.CategoryPhoto, FileID: "P1", Caption: "cat"},
		{Type: models.CategorySticker, FileID: "S1"},
	}
	require.NoError(t, store.Put(context.Background(), "tok", atts))

	rec := httptest.NewRecorder()
	newRouter(store, &recordingUpdates{}).ServeHTTP(rec, httptest.NewRequest("GET", "/bundles/tok", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body BundleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok", body.Token)
	assert.Equal(t, 2, body.AttachmentCount)
	assert.Equal(t, atts, body.Attachments)
	assert.Contains(t, rec.Body.String(), `"type":"photo"`)
}

func TestGetBundleNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(storage.NewMemoryBundleStore(), &recordingUpdates{}).ServeHTTP(rec, httptest.NewRequest("GET", "/bundles/bogus-token", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBundleBackendErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(brokenStore{}, &recordingUpdates{}).ServeHTTP(rec, httptest.NewRequest("GET", "/bundles/tok", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	updates := &recordingUpdates{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/telegram/s3cret", strings.NewReader(`{"update_id":77,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"hi"}}`))

	newRouter(storage.NewMemoryBundleStore(), updates).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{77}, updates.ids)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	updates := &recordingUpdates{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/telegram/guess", strings.NewReader(`{"update_id":1}`))

	newRouter(storage.NewMemoryBundleStore(), updates).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, updates.ids)
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	updates := &recordingUpdates{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/telegram/s3cret", strings.NewReader(`{not json`))

	newRouter(storage.NewMemoryBundleStore(), updates).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, updates.ids)
}
