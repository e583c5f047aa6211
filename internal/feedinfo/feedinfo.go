// Package feedinfo resolves feed URLs to cached feed metadata. Entries are
// populated once on first lookup and only change through Refresh.
package feedinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"feed_playback/internal/model"
	"feed_playback/internal/storage"
)

// Reader is the subset of the reader client used to populate the cache.
type Reader interface {
	LookupFeedURL(ctx context.Context, htmlOrFeedURL string) (string, bool)
	LookupFeedTitle(ctx context.Context, feedURL string) (string, bool)
	FeedItemRefs(ctx context.Context, feedURL string, oldestTimestampUsec int64) ([]model.ItemRef, bool)
}

// TitleFetcher recovers a title from the feed document itself.
type TitleFetcher interface {
	Title(ctx context.Context, feedURL string) (string, bool)
}

// Store is the persistence used by the cache.
type Store interface {
	GetFeedInfo(ctx context.Context, feedURL string) (*model.FeedInfo, error)
	CreateFeedInfo(ctx context.Context, info *model.FeedInfo) error
	AppendFeedItems(ctx context.Context, feedURL string, refs []model.ItemRef) error
}

// Cache is the populate-once feed info cache.
type Cache struct {
	store  Store
	reader Reader
	titles TitleFetcher
	log    *slog.Logger
}

// New creates a Cache. titles may be nil, in which case a missing title
// falls back to the feed URL's host directly.
func New(store Store, reader Reader, titles TitleFetcher, log *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		reader: reader,
		titles: titles,
		log:    log,
	}
}

// Get resolves a page or feed URL and returns its feed info. A URL the
// service cannot resolve yields (nil, nil).
func (c *Cache) Get(ctx context.Context, htmlOrFeedURL string) (*model.FeedInfo, error) {
	feedURL, ok := c.reader.LookupFeedURL(ctx, htmlOrFeedURL)
	if !ok {
		c.log.Info("feed url not resolved", "url", htmlOrFeedURL)
		return nil, nil
	}
	return c.GetFromFeedURL(ctx, feedURL)
}

// GetFromFeedURL returns the cached info for feedURL, populating the cache
// on a miss. A feed without listable items yields (nil, nil) and is not
// cached, so the next call retries.
func (c *Cache) GetFromFeedURL(ctx context.Context, feedURL string) (*model.FeedInfo, error) {
	info, err := c.store.GetFeedInfo(ctx, feedURL)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get feed info: %w", err)
	}

	title := c.title(ctx, feedURL)
	refs, ok := c.reader.FeedItemRefs(ctx, feedURL, 0)
	if !ok || len(refs) == 0 {
		c.log.Info("feed has no items", "feed_url", feedURL)
		return nil, nil
	}

	if err := c.store.CreateFeedInfo(ctx, model.NewFeedInfo(feedURL, title, refs)); err != nil {
		return nil, fmt.Errorf("create feed info: %w", err)
	}

	// A concurrent miss may have stored its snapshot first; that one is kept.
	info, err = c.store.GetFeedInfo(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("get feed info: %w", err)
	}
	c.log.Info("cached feed info", "feed_url", feedURL, "title", info.Title, "items", info.Len())
	return info, nil
}

// Refresh appends items newer than the newest cached one. A feed that is not
// cached yields (nil, nil).
func (c *Cache) Refresh(ctx context.Context, feedURL string) (*model.FeedInfo, error) {
	info, err := c.store.GetFeedInfo(ctx, feedURL)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed info: %w", err)
	}

	refs, ok := c.reader.FeedItemRefs(ctx, feedURL, info.NewestTimestampUsec())
	if !ok || len(refs) == 0 {
		return info, nil
	}

	if err := c.store.AppendFeedItems(ctx, feedURL, refs); err != nil {
		return nil, fmt.Errorf("append feed items: %w", err)
	}
	for _, ref := range refs {
		info.ItemIDs = append(info.ItemIDs, ref.ID)
		info.ItemTimestampsUsec = append(info.ItemTimestampsUsec, ref.TimestampUsec)
	}
	c.log.Info("refreshed feed info", "feed_url", feedURL, "new_items", len(refs), "items", info.Len())
	return info, nil
}

func (c *Cache) title(ctx context.Context, feedURL string) string {
	if title, ok := c.reader.LookupFeedTitle(ctx, feedURL); ok {
		return title
	}
	if c.titles != nil {
		if title, ok := c.titles.Title(ctx, feedURL); ok {
			return title
		}
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	return u.Host
}
