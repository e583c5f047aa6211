// Package playback creates feed playback subscriptions and advances them,
// tagging one feed item per advance into the subscription's reader stream.
package playback

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"feed_playback/internal/model"
	"feed_playback/internal/reader"
)

// ErrFeedNotFound is returned when a subscription's feed cannot be resolved.
var ErrFeedNotFound = errors.New("feed not found")

const secondsPerDay = 24 * 60 * 60

// Store is the subscription persistence used by the Service.
type Store interface {
	SaveSubscription(ctx context.Context, sub *model.Subscription) error
}

// FeedInfos resolves canonical feed URLs to cached feed info.
type FeedInfos interface {
	GetFromFeedURL(ctx context.Context, feedURL string) (*model.FeedInfo, error)
}

// Reader is the subset of the reader client used for playback.
type Reader interface {
	LabelStreamID(label string) string
	CreateNote(ctx context.Context, n reader.Note) error
	SetStreamPublic(ctx context.Context, streamID string, public bool) error
	EditItemTags(ctx context.Context, itemID, originStreamID string, add, remove []string) error
}

// Options holds the application identity attached to intro notes.
type Options struct {
	AppURL  string
	AppName string
}

// Service creates and advances subscriptions.
type Service struct {
	store  Store
	feeds  FeedInfos
	reader Reader
	opts   Options
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for bucket assignment.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(store Store, feeds FeedInfos, r Reader, opts Options, log *slog.Logger, options ...Option) *Service {
	s := &Service{
		store:  store,
		feeds:  feeds,
		reader: r,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// ModuloForFrequency returns the day bucket of freq at now. Daily
// subscriptions are always in bucket 0.
func ModuloForFrequency(freq model.Frequency, now time.Time) int {
	if freq == model.Daily {
		return 0
	}
	return int(DaysSinceEpoch(now) % int64(freq.Period()))
}

// DueModulo returns the bucket of freq that is due at now.
func DueModulo(freq model.Frequency, now time.Time) int {
	return ModuloForFrequency(freq, now)
}

// DaysSinceEpoch returns the number of whole UTC days since the Unix epoch.
func DaysSinceEpoch(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}

// StartPosition returns the index of the first item at or after startUsec,
// or the item count when every item is older.
func StartPosition(info *model.FeedInfo, startUsec int64) int {
	for i, ts := range info.ItemTimestampsUsec {
		if ts >= startUsec {
			return i
		}
	}
	return len(info.ItemTimestampsUsec)
}

// NewSubscriptionID returns a compact random identifier: a 128-bit UUID in
// unpadded URL-safe base64.
func NewSubscriptionID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// CreateSubscription creates and persists a subscription to feedURL that
// starts at the first item published at or after startDate. The reader
// stream itself is created later by CreateReaderStream.
func (s *Service) CreateSubscription(ctx context.Context, feedURL string, startDate time.Time, freq model.Frequency) (*model.Subscription, error) {
	info, err := s.feeds.GetFromFeedURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("get feed info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, feedURL)
	}

	id := NewSubscriptionID()
	sub := &model.Subscription{
		ID:              id,
		ReaderStreamID:  s.reader.LabelStreamID(fmt.Sprintf("%s (%s)", info.Title, id)),
		FeedURL:         feedURL,
		Frequency:       freq,
		FrequencyModulo: ModuloForFrequency(freq, s.now()),
		Position:        StartPosition(info, startDate.UnixMicro()),
	}
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.log.Info("created subscription",
		"subscription_id", sub.ID,
		"feed_url", feedURL,
		"frequency", freq,
		"modulo", sub.FrequencyModulo,
		"position", sub.Position,
		"items", info.Len(),
	)
	return sub, nil
}

// CreateReaderStream seeds the subscription's stream with an intro note,
// makes the stream public and queues the first item.
func (s *Service) CreateReaderStream(ctx context.Context, sub *model.Subscription, introURL, introTitle, introBody string) error {
	if err := s.reader.CreateNote(ctx, reader.Note{
		Title:       introTitle,
		Body:        introBody,
		URL:         introURL,
		SourceURL:   s.opts.AppURL,
		SourceTitle: s.opts.AppName,
		Share:       false,
		StreamIDs:   []string{sub.ReaderStreamID},
	}); err != nil {
		s.log.Warn("create intro note", "subscription_id", sub.ID, "error", err)
	}
	if err := s.reader.SetStreamPublic(ctx, sub.ReaderStreamID, true); err != nil {
		s.log.Warn("make stream public", "subscription_id", sub.ID, "error", err)
	}
	return s.Advance(ctx, sub)
}

// Advance tags the item at the subscription's position into its stream and
// moves the position forward. An exhausted subscription is left untouched.
// The tag call is best effort: its failure is logged and the position still
// advances.
func (s *Service) Advance(ctx context.Context, sub *model.Subscription) error {
	info, err := s.feeds.GetFromFeedURL(ctx, sub.FeedURL)
	if err != nil {
		return fmt.Errorf("get feed info: %w", err)
	}
	if info == nil {
		return fmt.Errorf("%w: %s", ErrFeedNotFound, sub.FeedURL)
	}

	if sub.Position >= info.Len() {
		s.log.Debug("subscription exhausted", "subscription_id", sub.ID, "position", sub.Position)
		return nil
	}

	itemID := info.ItemIDs[sub.Position]
	if err := s.reader.EditItemTags(ctx, itemID, reader.FeedStreamID(sub.FeedURL), []string{sub.ReaderStreamID}, nil); err != nil {
		s.log.Warn("tag item", "subscription_id", sub.ID, "item_id", itemID, "error", err)
	}

	sub.Position++
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}

	s.log.Info("advanced subscription", "subscription_id", sub.ID, "item_id", itemID, "position", sub.Position)
	return nil
}

// Progress reports how far a subscription is through its feed.
type Progress struct {
	Position  int
	Total     int
	Exhausted bool
}

// Status returns the progress of sub.
func (s *Service) Status(ctx context.Context, sub *model.Subscription) (Progress, error) {
	info, err := s.feeds.GetFromFeedURL(ctx, sub.FeedURL)
	if err != nil {
		return Progress{}, fmt.Errorf("get feed info: %w", err)
	}
	if info == nil {
		return Progress{}, fmt.Errorf("%w: %s", ErrFeedNotFound, sub.FeedURL)
	}
	return Progress{
		Position:  sub.Position,
		Total:     info.Len(),
		Exhausted: sub.Position >= info.Len(),
	}, nil
}
