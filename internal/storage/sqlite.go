package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feed_playback/internal/model"
	"feed_playback/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetFeedInfo returns the cached info for feedURL.
func (s *SQLite) GetFeedInfo(ctx context.Context, feedURL string) (*model.FeedInfo, error) {
	info := model.FeedInfo{FeedURL: feedURL}
	err := s.db.QueryRowContext(ctx,
		`SELECT title FROM feed_infos WHERE feed_url = ?`, feedURL,
	).Scan(&info.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed info: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, timestamp_usec FROM feed_items WHERE feed_url = ? ORDER BY idx`, feedURL,
	)
	if err != nil {
		return nil, fmt.Errorf("query feed items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	info.ItemIDs = []string{}
	info.ItemTimestampsUsec = []int64{}
	for rows.Next() {
		var id string
		var ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		info.ItemIDs = append(info.ItemIDs, id)
		info.ItemTimestampsUsec = append(info.ItemTimestampsUsec, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed items: %w", err)
	}
	return &info, nil
}

// CreateFeedInfo inserts a feed info and its items in one transaction. An
// existing entry for the same URL is left untouched.
func (s *SQLite) CreateFeedInfo(ctx context.Context, info *model.FeedInfo) error {
	if len(info.ItemIDs) != len(info.ItemTimestampsUsec) {
		return fmt.Errorf("feed info %s: %d ids but %d timestamps",
			info.FeedURL, len(info.ItemIDs), len(info.ItemTimestampsUsec))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO feed_infos (feed_url, title, created_at) VALUES (?, ?, ?)`,
		info.FeedURL, info.Title, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert feed info: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil
	}

	refs := make([]model.ItemRef, len(info.ItemIDs))
	for i := range info.ItemIDs {
		refs[i] = model.ItemRef{ID: info.ItemIDs[i], TimestampUsec: info.ItemTimestampsUsec[i]}
	}
	if err := insertItems(ctx, tx, info.FeedURL, 0, refs); err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimRunDay inserts day into scheduler_runs unless it is already there.
func (s *SQLite) ClaimRunDay(ctx context.Context, day int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO scheduler_runs (day, started_at) VALUES (?, ?)`,
		day, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("claim run day %d: %w", day, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// AppendFeedItems adds refs after the last cached item of feedURL.
func (s *SQLite) AppendFeedItems(ctx context.Context, feedURL string, refs []model.ItemRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_infos WHERE feed_url = ?`, feedURL,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check feed info: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM feed_items WHERE feed_url = ?`, feedURL,
	).Scan(&next); err != nil {
		return fmt.Errorf("next item index: %w", err)
	}

	if err := insertItems(ctx, tx, feedURL, next, refs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, feedURL string, start int, refs []model.ItemRef) error {
	if len(refs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feed_items (feed_url, idx, item_id, timestamp_usec) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert items: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, ref := range refs {
		if _, err := stmt.ExecContext(ctx, feedURL, start+i, ref.ID, ref.TimestampUsec); err != nil {
			return fmt.Errorf("insert feed item: %w", err)
		}
	}
	return nil
}

// GetSubscription returns a single subscription by its ID.
func (s *SQLite) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reader_stream_id, feed_url, frequency, frequency_modulo, position
		 FROM subscriptions WHERE id = ?`, id,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptionsByFrequency returns the subscriptions in one frequency bucket.
func (s *SQLite) ListSubscriptionsByFrequency(ctx context.Context, freq model.Frequency, modulo int) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reader_stream_id, feed_url, frequency, frequency_modulo, position
		 FROM subscriptions WHERE frequency = ? AND frequency_modulo = ? ORDER BY created_at, id`,
		string(freq), modulo,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SaveSubscription inserts or fully replaces a subscription.
func (s *SQLite) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (id, reader_stream_id, feed_url, frequency, frequency_modulo, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   reader_stream_id = excluded.reader_stream_id,
		   feed_url = excluded.feed_url,
		   frequency = excluded.frequency,
		   frequency_modulo = excluded.frequency_modulo,
		   position = excluded.position,
		   updated_at = excluded.updated_at`,
		sub.ID, sub.ReaderStreamID, sub.FeedURL, string(sub.Frequency), sub.FrequencyModulo, sub.Position, now, now,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubscription(row scannable) (model.Subscription, error) {
	var sub model.Subscription
	var freq string
	err := row.Scan(&sub.ID, &sub.ReaderStreamID, &sub.FeedURL, &freq, &sub.FrequencyModulo, &sub.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, err
	}
	if err != nil {
		return sub, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Frequency = model.Frequency(freq)
	return sub, nil
}
