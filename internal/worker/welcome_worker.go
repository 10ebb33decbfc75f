package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const deliveryTimeout = 15 * time.Second

// WelcomeJob is a welcome message addressed to a Telegram chat.
type WelcomeJob struct {
	ChatID int64
	Text   string
}

// Sender delivers a welcome message.
type Sender interface {
	SendWelcome(ctx context.Context, chatID int64, text string) error
}

// WelcomeWorker delivers welcome messages off the request path. Delivery is
// best effort: failures are logged and the job is dropped.
type WelcomeWorker struct {
	sender  Sender
	logger  *zap.Logger
	jobs    chan WelcomeJob
	workers int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewWelcomeWorker creates a worker pool with the given concurrency and queue size.
func NewWelcomeWorker(sender Sender, workers, queueSize int, logger *zap.Logger) *WelcomeWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WelcomeWorker{
		sender:  sender,
		logger:  logger,
		jobs:    make(chan WelcomeJob, queueSize),
		workers: workers,
	}
}

// Start launches the delivery goroutines. They exit when ctx is cancelled or
// Stop is called.
func (w *WelcomeWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.run(ctx)
		}
	})
}

// Stop closes the queue and waits for queued jobs to drain.
func (w *WelcomeWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}

// Enqueue schedules a welcome message without blocking. It returns false when
// the queue is full.
func (w *WelcomeWorker) Enqueue(chatID int64, text string) (queued bool) {
	defer func() {
		// enqueue after Stop
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case w.jobs <- WelcomeJob{ChatID: chatID, Text: text}:
		return true
	default:
		w.logger.Warn("welcome queue full, dropping message", zap.Int64("chat_id", chatID))
		return false
	}
}

func (w *WelcomeWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.deliver(ctx, job)
		}
	}
}

func (w *WelcomeWorker) deliver(ctx context.Context, job WelcomeJob) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := w.sender.SendWelcome(ctx, job.ChatID, job.Text); err != nil {
		w.logger.Error("failed to send telegram welcome message",
			zap.Int64("chat_id", job.ChatID),
			zap.Error(err))
		return
	}
	w.logger.Debug("telegram welcome message sent", zap.Int64("chat_id", job.ChatID))
}
