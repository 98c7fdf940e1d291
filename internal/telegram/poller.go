package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PollTimeout is the getUpdates long-poll timeout in seconds. The HTTP
// client timeout must be longer.
const PollTimeout = 30

// UpdateSource is satisfied by *Client and *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler processes one inbound update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Poller reads updates by long polling. Updates from one user are handled
// one at a time in arrival order; different users are handled concurrently.
type Poller struct {
	src     UpdateSource
	handler UpdateHandler
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	// a key is present while a worker drains its queue
	queues map[int64][]tgbotapi.Update
}

func NewPoller(src UpdateSource, handler UpdateHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:     src,
		handler: handler,
		logger:  logger.With("component", "poller"),
		queues:  make(map[int64][]tgbotapi.Update),
	}
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for queued and in-flight handlers.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = PollTimeout
	updates := p.src.GetUpdatesChan(cfg)

	// handlers outlive the poll loop so a delivery in progress completes
	handlerCtx := context.WithoutCancel(ctx)

	p.logger.Info("polling for updates")
	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			p.src.StopReceivingUpdates()
			p.logger.Info("polling stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			p.enqueue(handlerCtx, u)
		}
	}
}

// enqueue appends u to its sender's queue and starts a worker unless one is
// already draining it.
func (p *Poller) enqueue(ctx context.Context, u tgbotapi.Update) {
	key := updateKey(u)

	p.mu.Lock()
	q, busy := p.queues[key]
	p.queues[key] = append(q, u)
	p.mu.Unlock()
	if busy {
		return
	}

	p.wg.Add(1)
	go p.drain(ctx, key)
}

func (p *Poller) drain(ctx context.Context, key int64) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		q := p.queues[key]
		if len(q) == 0 {
			delete(p.queues, key)
			p.mu.Unlock()
			return
		}
		u := q[0]
		p.queues[key] = q[1:]
		p.mu.Unlock()

		p.handler.HandleUpdate(ctx, u)
	}
}

// updateKey is the id updates are serialized on: the sending user, else
// the chat. Updates carrying neither share key 0.
func updateKey(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	case u.EditedMessage != nil && u.EditedMessage.From != nil:
		return u.EditedMessage.From.ID
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat.ID
	}
	return 0
}
