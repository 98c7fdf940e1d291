// Package purge removes delivered bundle copies from a chat after a delay
// and then offers a restore link.
//
// Pending jobs live only in memory. Stop, or a process exit, drops them and
// the delivered messages stay in the chat.
package purge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/metrics"
	"github.com/maneesh/mediadrop/internal/models"
)

var tracer = otel.Tracer("mediadrop-purge")

const (
	// DefaultDelay is how long delivered copies stay in the chat.
	DefaultDelay = 600 * time.Second

	defaultCallTimeout = 30 * time.Second
)

// ErrStopped is returned by Schedule after Stop.
var ErrStopped = errors.New("purge scheduler stopped")

// Target is the live transport a job deletes from and notifies through.
type Target interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	NotifyPurged(ctx context.Context, chatID int64, token string) error
}

// DeleteResult is the outcome of one delete attempt.
type DeleteResult struct {
	MessageID int
	Err       error
}

// Outcome summarizes a finished job
type Outcome struct {
	JobID     string
	Record    models.DeliveryRecord
	Results   []DeleteResult
	NotifyErr error
}

// Failed returns the number of deletes that did not succeed.
func (o Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

type job struct {
	id       string
	record   models.DeliveryRecord
	deadline time.Time
	timer    *time.Timer
}

// Scheduler runs one-shot purge jobs. Each job fires at most once; jobs are
// independent and run on their own goroutines.
type Scheduler struct {
	target      Target
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onDone      func(Outcome)

	mu      sync.Mutex
	pending map[string]*job
	stopped bool
	running sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJobTimeout sets the deadline of each delete and of the notify; every
// call of a job gets a fresh one.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.callTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithOutcomeHook is called with every finished job's outcome.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(s *Scheduler) {
		s.onDone = fn
	}
}

func NewScheduler(target Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		target:      target,
		callTimeout: defaultCallTimeout,
		logger:      slog.Default(),
		metrics:     metrics.New(),
		pending:     make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "purge")
	return s
}

// Schedule registers rec for purging after delay and returns the job id.
// The same token may be scheduled many times; every call is its own job.
func (s *Scheduler) Schedule(rec models.DeliveryRecord, delay time.Duration) (string, error) {
	j := &job{
		id: uuid.NewString(),
		record: models.DeliveryRecord{
			ChatID:     rec.ChatID,
			MessageIDs: append([]int(nil), rec.MessageIDs...),
			Token:      rec.Token,
		},
		deadline: time.Now().Add(delay),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrStopped
	}
	s.pending[j.id] = j
	j.timer = time.AfterFunc(delay, func() { s.fire(j.id) })
	s.metrics.PurgeJobsPending.Inc()

	s.logger.Debug("purge scheduled",
		"job_id", j.id,
		"chat_id", rec.ChatID,
		"messages", len(rec.MessageIDs),
		"token", rec.Token,
		"deadline", j.deadline,
	)
	return j.id, nil
}

// Pending returns the number of jobs waiting for their deadline.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels all pending jobs and waits for running ones or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		// A timer that already fired finds its job gone and does nothing.
		dropped := len(s.pending)
		for id, j := range s.pending {
			j.timer.Stop()
			delete(s.pending, id)
			s.metrics.PurgeJobsPending.Dec()
		}
		if dropped > 0 {
			s.logger.Warn("purge jobs dropped on shutdown, delivered messages stay in chat", "dropped", dropped)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fire claims the job under the lock so a job runs at most once, then runs it.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	j, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		s.metrics.PurgeJobsPending.Dec()
		s.running.Add(1)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	defer s.running.Done()

	out := s.run(j)
	if s.onDone != nil {
		s.onDone(out)
	}
}

func (s *Scheduler) run(j *job) Outcome {
	ctx, span := tracer.Start(context.Background(), "purge.run_job",
		trace.WithAttributes(
			attribute.String("job_id", j.id),
			attribute.Int64("chat_id", j.record.ChatID),
			attribute.Int("message_count", len(j.record.MessageIDs)),
		),
	)
	defer span.End()

	out := Outcome{
		JobID:   j.id,
		Record:  j.record,
		Results: make([]DeleteResult, 0, len(j.record.MessageIDs)),
	}

	for _, mid := range j.record.MessageIDs {
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.target.DeleteMessage(ctx, j.record.ChatID, mid)
		})
		out.Results = append(out.Results, DeleteResult{MessageID: mid, Err: err})
		if err != nil {
			s.metrics.PurgeDeletes.WithLabelValues("failed").Inc()
			s.logger.Debug("delete failed", "job_id", j.id, "message_id", mid, "error", err)
			continue
		}
		s.metrics.PurgeDeletes.WithLabelValues("deleted").Inc()
	}

	// Notify runs whatever the deletes did.
	out.NotifyErr = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.target.NotifyPurged(ctx, j.record.ChatID, j.record.Token)
	})
	if out.NotifyErr != nil {
		span.RecordError(out.NotifyErr)
	}

	failed := out.Failed()
	span.SetAttributes(
		attribute.Int("deleted", len(out.Results)-failed),
		attribute.Int("failed", failed),
	)
	s.logger.Info("purge job finished",
		"job_id", j.id,
		"chat_id", j.record.ChatID,
		"token", j.record.Token,
		"deleted", len(out.Results)-failed,
		"failed", failed,
		"notify_error", out.NotifyErr,
	)
	return out
}

// withTimeout runs one Telegram call under its own deadline.
func (s *Scheduler) withTimeout(parent context.Context, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.callTimeout)
	defer cancel()
	return call(ctx)
}
