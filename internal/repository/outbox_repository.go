package repository

import (
	"context"
	"errors"
	"time"

	"keystore/internal/domain/model"
)

// 同じdedupe_keyが既に積まれている
var ErrDuplicate = errors.New("duplicate")

type OutboxRepository interface {
	Enqueue(ctx context.Context, msg model.OutboxMessage) error

	// 送信待ちで期限が来たものを古い順に
	ListDue(ctx context.Context, now time.Time, maxAttempts int, limit int) ([]model.OutboxMessage, error)

	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, lastError string, nextAt time.Time) error
}
