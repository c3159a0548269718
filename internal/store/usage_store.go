// Package store persists per-transform usage records.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("usage record not found")

// UsageRecord captures one completed transform for accounting.
type UsageRecord struct {
	ID          string
	ObjectURI   string
	Instruction string
	SourceBytes int
	OutputBytes int
	Format      string
	DurationMS  int64
	CreatedAt   time.Time
}

type UsageStore interface {
	CreateUsageRecord(ctx context.Context, record UsageRecord) error
	GetUsageRecord(ctx context.Context, id string) (UsageRecord, bool, error)
}
