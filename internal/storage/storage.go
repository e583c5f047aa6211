// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"feed_playback/internal/model"
)

// ErrNotFound is returned when a feed info or subscription does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	GetFeedInfo(ctx context.Context, feedURL string) (*model.FeedInfo, error)
	// CreateFeedInfo stores info unless an entry for its URL already exists,
	// in which case the existing entry wins.
	CreateFeedInfo(ctx context.Context, info *model.FeedInfo) error
	AppendFeedItems(ctx context.Context, feedURL string, refs []model.ItemRef) error

	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
	ListSubscriptionsByFrequency(ctx context.Context, freq model.Frequency, modulo int) ([]model.Subscription, error)
	// SaveSubscription upserts by ID. Concurrent saves are last-write-wins.
	SaveSubscription(ctx context.Context, sub *model.Subscription) error

	// ClaimRunDay records that the daily advance for day (days since the
	// Unix epoch) has started. It reports false when day was already claimed.
	ClaimRunDay(ctx context.Context, day int64) (bool, error)

	Close() error
}
