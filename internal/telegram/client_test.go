package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maneesh/mediadrop/internal/models"
)

type apiCall struct {
	method string
	form   url.Values
}

// fakeBotAPI serves just enough of the Bot API for Client.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
	next  int
	// stall holds deleteMessage for message 999 until closed
	stall chan struct{}
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: r.PostForm})
	f.next++
	id := f.next
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case method == "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Drop","username":"dropbot"}}`)
	case method == "deleteMessage" && r.PostForm.Get("message_id") == "999":
		<-f.stall
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	case method == "deleteMessage" && r.PostForm.Get("message_id") == "404":
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`)
	case method == "deleteMessage":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	case strings.HasPrefix(method, "send"):
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"chat":{"id":%s,"type":"private"},"date":0}}`, id, r.PostForm.Get("chat_id"))
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeBotAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{stall: make(chan struct{})}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(api.stall) })

	c, err := NewClient(ClientConfig{
		Token:    "TEST",
		Timeout:  5 * time.Second,
		Endpoint: srv.URL + "/bot%s/%s",
	})
	require.NoError(t, err)
	return c, api
}

func TestClientResolvesUsername(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, "dropbot", c.Username())
}

func TestClientSendAttachmentByFileID(t *testing.T) {
	c, api := newTestClient(t)

	id, err := c.SendAttachment(context.Background(), 42, models.Attachment{Type: models.CategoryPhoto, FileID: "P1", Caption: "cat"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	call := api.last()
	assert.Equal(t, "sendPhoto", call.method)
	assert.Equal(t, "42", call.form.Get("chat_id"))
	assert.Equal(t, "P1", call.form.Get("photo"))
	assert.Equal(t, "cat", call.form.Get("caption"))
}

func TestClientSendAttachmentMethods(t *testing.T) {
	c, api := newTestClient(t)

	want := map[models.Category]string{
		models.CategoryVideo:     "sendVideo",
		models.CategoryAudio:     "sendAudio",
		models.CategoryVoice:     "sendVoice",
		models.CategoryDocument:  "sendDocument",
		models.CategoryAnimation: "sendAnimation",
		models.CategorySticker:   "sendSticker",
	}
	for cat, method := range want {
		_, err := c.SendAttachment(context.Background(), 1, models.Attachment{Type: cat, FileID: "F"})
		require.NoError(t, err)
		assert.Equal(t, method, api.last().method, cat.String())
	}
}

func TestClientDeleteMessage(t *testing.T) {
	c, api := newTestClient(t)

	require.NoError(t, c.DeleteMessage(context.Background(), 42, 7))
	assert.Equal(t, "deleteMessage", api.last().method)
	assert.Equal(t, "7", api.last().form.Get("message_id"))

	assert.Error(t, c.DeleteMessage(context.Background(), 42, 404))
}

func TestClientNotifyPurgedLinksBack(t *testing.T) {
	c, api := newTestClient(t)

	require.NoError(t, c.NotifyPurged(context.Background(), 42, "tok-1"))

	call := api.last()
	assert.Equal(t, "sendMessage", call.method)
	assert.Equal(t, textPurged, call.form.Get("text"))
	assert.Contains(t, call.form.Get("reply_markup"), "https://t.me/dropbot?start=tok-1")
}

func TestClientHonoursCancelledContext(t *testing.T) {
	c, api := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := len(api.calls)
	_, err := c.SendText(ctx, 1, "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.calls, before)
}

func TestClientCallReturnsAtDeadline(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.DeleteMessage(ctx, 42, 999)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// a fresh context still works after an abandoned call
	require.NoError(t, c.DeleteMessage(context.Background(), 42, 7))
}

func TestClientSetWebhookLimitsConnections(t *testing.T) {
	c, api := newTestClient(t)

	require.NoError(t, c.SetWebhook("https://bot.example.com/telegram/s3cret"))
	call := api.last()
	assert.Equal(t, "setWebhook", call.method)
	assert.Equal(t, "1", call.form.Get("max_connections"))
}
