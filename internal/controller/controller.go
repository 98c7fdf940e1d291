// Package controller drives the upload session state machine and bundle
// redemption. It owns no transport; the telegram package calls into it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maneesh/mediadrop/internal/classifier"
	"github.com/maneesh/mediadrop/internal/metrics"
	"github.com/maneesh/mediadrop/internal/models"
	"github.com/maneesh/mediadrop/internal/purge"
	"github.com/maneesh/mediadrop/internal/session"
	"github.com/maneesh/mediadrop/internal/storage"
	"github.com/maneesh/mediadrop/internal/token"
)

var (
	ErrNoActiveSession = errors.New("no active upload session")
	ErrEmptyCommit     = errors.New("upload session has no attachments")
	// ErrTokenNotFound wraps storage.ErrNotFound.
	ErrTokenNotFound = fmt.Errorf("token not found: %w", storage.ErrNotFound)
)

// Purger schedules removal of delivered messages.
type Purger interface {
	Schedule(rec models.DeliveryRecord, delay time.Duration) (string, error)
}

type Controller struct {
	sessions   *session.Store
	store      storage.BundleStore
	purger     Purger
	newToken   func() string
	purgeDelay time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Controller)

// WithTokenSource replaces the random token generator.
func WithTokenSource(fn func() string) Option {
	return func(c *Controller) {
		c.newToken = fn
	}
}

// WithPurgeDelay sets how long delivered copies live before purging.
func WithPurgeDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.purgeDelay = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func New(sessions *session.Store, store storage.BundleStore, purger Purger, opts ...Option) *Controller {
	c := &Controller{
		sessions:   sessions,
		store:      store,
		purger:     purger,
		newToken:   token.New,
		purgeDelay: purge.DefaultDelay,
		logger:     slog.Default(),
		metrics:    metrics.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	return c
}

// BeginUpload starts a fresh session for owner and returns its token. A
// session already in progress is discarded.
func (c *Controller) BeginUpload(owner int64) string {
	tok := c.newToken()
	_, replaced := c.sessions.Begin(owner, tok)
	c.metrics.SessionsStarted.Inc()
	if replaced {
		c.logger.Info("previous upload session discarded", "owner", owner)
	}
	c.logger.Debug("upload session started", "owner", owner, "token", tok)
	return tok
}

// SubmitAttachment classifies msg and appends it to the owner's session. It
// returns the stored attachment and the session's new attachment count.
// Unsupported input leaves the session untouched.
func (c *Controller) SubmitAttachment(owner int64, msg *tgbotapi.Message) (models.Attachment, int, error) {
	s, ok := c.sessions.Get(owner)
	if !ok {
		return models.Attachment{}, 0, ErrNoActiveSession
	}

	att, err := classifier.Classify(msg)
	if err != nil {
		return models.Attachment{}, s.Len(), err
	}
	return att, s.Append(att), nil
}

// Commit persists the owner's session as a bundle and returns its token.
//
// The session is claimed before the store is written, so a repeated confirm
// finds no session instead of writing the bundle twice. An empty session is
// cleared and ErrEmptyCommit returned. When the store fails the session is
// put back so the owner can confirm again.
func (c *Controller) Commit(ctx context.Context, owner int64) (string, error) {
	s, ok := c.sessions.Get(owner)
	if !ok {
		return "", ErrNoActiveSession
	}

	atts := s.Attachments()
	if len(atts) == 0 {
		c.sessions.Remove(owner, s)
		c.metrics.Commits.WithLabelValues("empty").Inc()
		return "", ErrEmptyCommit
	}

	if !c.sessions.Remove(owner, s) {
		return "", ErrNoActiveSession
	}

	if err := c.store.Put(ctx, s.Token, atts); err != nil {
		c.metrics.Commits.WithLabelValues("error").Inc()
		restored := c.sessions.Restore(owner, s)
		if errors.Is(err, storage.ErrDuplicateToken) {
			c.logger.Error("token collision on commit", "owner", owner, "token", s.Token)
		} else {
			c.logger.Warn("commit failed", "owner", owner, "token", s.Token, "session_kept", restored, "error", err)
		}
		return "", fmt.Errorf("failed to commit bundle: %w", err)
	}

	c.metrics.Commits.WithLabelValues("ok").Inc()
	c.logger.Info("bundle committed", "owner", owner, "token", s.Token, "attachments", len(atts))
	return s.Token, nil
}

// Abandon drops the owner's session without persisting it.
func (c *Controller) Abandon(owner int64) bool {
	return c.sessions.Abandon(owner)
}

// Active reports whether owner has a session in progress.
func (c *Controller) Active(owner int64) bool {
	_, ok := c.sessions.Get(owner)
	return ok
}

// Redeem returns the attachments stored under tok in commit order.
func (c *Controller) Redeem(ctx context.Context, tok string) ([]models.Attachment, error) {
	if tok == "" {
		c.metrics.Redemptions.WithLabelValues("not_found").Inc()
		return nil, ErrTokenNotFound
	}

	atts, err := c.store.Get(ctx, tok)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.metrics.Redemptions.WithLabelValues("not_found").Inc()
		return nil, ErrTokenNotFound
	case err != nil:
		c.metrics.Redemptions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to redeem bundle: %w", err)
	}
	c.metrics.Redemptions.WithLabelValues("ok").Inc()
	return atts, nil
}

// PurgeDelay is how long delivered copies stay in a chat.
func (c *Controller) PurgeDelay() time.Duration {
	return c.purgeDelay
}

// TrackDelivery schedules the purge of messages delivered to chatID. An
// empty id list schedules nothing and returns an empty job id.
func (c *Controller) TrackDelivery(chatID int64, messageIDs []int, tok string) (string, error) {
	if len(messageIDs) == 0 {
		return "", nil
	}
	jobID, err := c.purger.Schedule(models.DeliveryRecord{
		ChatID:     chatID,
		MessageIDs: messageIDs,
		Token:      tok,
	}, c.purgeDelay)
	if err != nil {
		return "", fmt.Errorf("failed to schedule purge: %w", err)
	}
	return jobID, nil
}
