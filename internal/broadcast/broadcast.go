// Package broadcast fans a list of messages out to a set of recipients.
//
// Delivery semantics: every recipient is attempted. Messages are delivered
// to a recipient in sequence order; the first failure aborts only that
// recipient's remaining sends. A failure never escapes the fan-out loop.
// The summary is not visible until the whole fan-out completes.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"premiumbot/internal/session"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

type Config struct {
	Workers    int
	RatePerSec int
}

// Sender is the subset of the platform adapter the engine needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	SendPhoto(ctx context.Context, to transport.ChatTarget, fileID, caption string) error
	SendVideo(ctx context.Context, to transport.ChatTarget, fileID, caption string) error
	SendDocument(ctx context.Context, to transport.ChatTarget, fileID, caption string) error
}

// Summary is the delivery report for one fan-out. A recipient counts as
// successful only if every message reached them.
type Summary struct {
	Successful      int
	Failed          int
	TotalRecipients int
	TotalMessages   int
}

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, sender Sender, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{sender: sender, log: log}
	e.Apply(cfg)
	return e
}

// Apply swaps the worker/rate settings at runtime.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Broadcast delivers msgs to every recipient and blocks until the fan-out
// completes. The header is prepended to each text and caption. Recipients
// are processed in no particular order.
func (e *Engine) Broadcast(ctx context.Context, header string, msgs []session.Message, recipients []int64) Summary {
	e.mu.Lock()
	workers := e.cfg.Workers
	limiter := e.limiter
	e.mu.Unlock()

	sum := Summary{TotalRecipients: len(recipients), TotalMessages: len(msgs)}
	if len(recipients) == 0 || len(msgs) == 0 {
		return sum
	}
	if workers > len(recipients) {
		workers = len(recipients)
	}

	jobID := uuid.NewString()
	start := time.Now()
	e.log.Info("broadcast started",
		logx.String("job", jobID),
		logx.Int("recipients", len(recipients)),
		logx.Int("messages", len(msgs)),
		logx.Int("workers", workers))

	var successful, failed atomic.Int64

	queue := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range queue {
				if err := e.deliverAll(ctx, limiter, userID, header, msgs); err != nil {
					failed.Add(1)
					e.log.Debug("broadcast delivery failed",
						logx.String("job", jobID),
						logx.Int64("user_id", userID),
						logx.Err(err))
				} else {
					successful.Add(1)
				}
			}
		}()
	}

	for _, id := range recipients {
		queue <- id
	}
	close(queue)
	wg.Wait()

	sum.Successful = int(successful.Load())
	sum.Failed = int(failed.Load())

	e.log.Info("broadcast completed",
		logx.String("job", jobID),
		logx.Int("successful", sum.Successful),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", time.Since(start)))
	return sum
}

// deliverAll sends every message to one recipient in order, stopping at the
// first failure for that recipient.
func (e *Engine) deliverAll(ctx context.Context, limiter *rate.Limiter, userID int64, header string, msgs []session.Message) error {
	to := transport.ChatTarget{ChatID: userID}
	for _, msg := range msgs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := e.sendOne(ctx, to, header, msg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) sendOne(ctx context.Context, to transport.ChatTarget, header string, msg session.Message) error {
	switch msg.Kind {
	case session.KindText:
		_, err := e.sender.SendText(ctx, to, header+msg.Body, nil)
		return err
	case session.KindPhoto:
		return e.sender.SendPhoto(ctx, to, msg.FileID, header+msg.Caption)
	case session.KindVideo:
		return e.sender.SendVideo(ctx, to, msg.FileID, header+msg.Caption)
	case session.KindDocument:
		return e.sender.SendDocument(ctx, to, msg.FileID, header+msg.Caption)
	}
	// Unrecognized kinds never reach the buffer.
	return nil
}
