package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	repo "keystore/internal/repository"
)

type RelayOptions struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// outboxに積まれた通知をブローカーへ送る
type OutboxRelay struct {
	outbox    repo.OutboxRepository
	publisher Publisher
	clock     Clock
	log       *slog.Logger
	opts      RelayOptions
}

func NewOutboxRelay(outbox repo.OutboxRepository, publisher Publisher, clock Clock, log *slog.Logger, opts RelayOptions) *OutboxRelay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 5 * time.Second
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = opts.BaseBackoff
	}
	return &OutboxRelay{outbox: outbox, publisher: publisher, clock: clock, log: log, opts: opts}
}

// ctxがキャンセルされるまでポーリングする
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.log.InfoContext(ctx, "outbox relay started", "interval", r.opts.PollInterval)
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.log.ErrorContext(ctx, "outbox flush failed", "err", err)
		}

		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// 期限の来たメッセージを1バッチ送る。送れた件数を返す
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	now := r.clock.Now()
	due, err := r.outbox.ListDue(ctx, now, r.opts.MaxAttempts, r.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}

	sent := 0
	for _, m := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		if err := r.publisher.Publish(ctx, m.Topic, m.DedupeKey, []byte(m.Payload)); err != nil {
			attempt := m.Attempts + 1
			next := now.Add(Backoff(attempt, r.opts.BaseBackoff, r.opts.MaxBackoff))
			if merr := r.outbox.MarkFailed(ctx, m.ID, err.Error(), next); merr != nil {
				return sent, fmt.Errorf("mark failed %s: %w", m.ID, merr)
			}
			if attempt >= r.opts.MaxAttempts {
				r.log.ErrorContext(ctx, "outbox message parked", "id", m.ID, "topic", m.Topic, "attempts", attempt, "err", err)
			} else {
				r.log.WarnContext(ctx, "outbox publish failed", "id", m.ID, "topic", m.Topic, "attempt", attempt, "next", next, "err", err)
			}
			continue
		}

		if err := r.outbox.MarkSent(ctx, m.ID, r.clock.Now()); err != nil {
			return sent, fmt.Errorf("mark sent %s: %w", m.ID, err)
		}
		sent++
	}
	return sent, nil
}

// base * 2^(attempt-1)、上限max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
