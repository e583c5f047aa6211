package feedinfo

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"feed_playback/internal/model"
	"feed_playback/internal/storage"
)

type fakeReader struct {
	feedURLs map[string]string
	titles   map[string]string
	refs     map[string][]model.ItemRef

	calls   int
	cutoffs []int64
}

func (f *fakeReader) LookupFeedURL(_ context.Context, u string) (string, bool) {
	f.calls++
	v, ok := f.feedURLs[u]
	return v, ok
}

func (f *fakeReader) LookupFeedTitle(_ context.Context, feedURL string) (string, bool) {
	f.calls++
	v, ok := f.titles[feedURL]
	return v, ok
}

func (f *fakeReader) FeedItemRefs(_ context.Context, feedURL string, oldest int64) ([]model.ItemRef, bool) {
	f.calls++
	f.cutoffs = append(f.cutoffs, oldest)
	refs, ok := f.refs[feedURL]
	if !ok {
		return nil, false
	}
	var out []model.ItemRef
	for _, r := range refs {
		if r.TimestampUsec > oldest {
			out = append(out, r)
		}
	}
	return out, true
}

type fakeTitles map[string]string

func (f fakeTitles) Title(_ context.Context, feedURL string) (string, bool) {
	v, ok := f[feedURL]
	return v, ok
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const feedURL = "https://example.com/feed.xml"

func sampleRefs() []model.ItemRef {
	return []model.ItemRef{
		{ID: "a", TimestampUsec: 100},
		{ID: "b", TimestampUsec: 200},
		{ID: "c", TimestampUsec: 300},
	}
}

func TestGetFromFeedURLPopulatesOnce(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{
		titles: map[string]string{feedURL: "Example"},
		refs:   map[string][]model.ItemRef{feedURL: sampleRefs()},
	}
	cache := New(newTestStore(t), reader, nil, discardLogger())

	first, err := cache.GetFromFeedURL(ctx, feedURL)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	want := model.NewFeedInfo(feedURL, "Example", sampleRefs())
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("feed info mismatch (-want +got):\n%s", diff)
	}

	callsAfterMiss := reader.calls
	reader.refs[feedURL] = append(reader.refs[feedURL], model.ItemRef{ID: "d", TimestampUsec: 400})

	second, err := cache.GetFromFeedURL(ctx, feedURL)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if diff := cmp.Diff(callsAfterMiss, reader.calls); diff != "" {
		t.Errorf("cache hit made remote calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Errorf("cache hit picked up new items (-want +got):\n%s", diff)
	}
}

func TestGetFromFeedURLTitleFallback(t *testing.T) {
	tests := []struct {
		name   string
		titles TitleFetcher
		want   string
	}{
		{name: "host when nothing else", titles: nil, want: "example.com"},
		{name: "feed document title", titles: fakeTitles{feedURL: "From Document"}, want: "From Document"},
		{name: "host when document has none", titles: fakeTitles{}, want: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{refs: map[string][]model.ItemRef{feedURL: sampleRefs()}}
			cache := New(newTestStore(t), reader, tt.titles, discardLogger())

			info, err := cache.GetFromFeedURL(context.Background(), feedURL)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(tt.want, info.Title); diff != "" {
				t.Errorf("title mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetFromFeedURLNoItemsNotCached(t *testing.T) {
	tests := []struct {
		name string
		refs map[string][]model.ItemRef
	}{
		{name: "listing failed", refs: map[string][]model.ItemRef{}},
		{name: "empty listing", refs: map[string][]model.ItemRef{feedURL: {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			reader := &fakeReader{refs: tt.refs}
			store := newTestStore(t)
			cache := New(store, reader, nil, discardLogger())

			info, err := cache.GetFromFeedURL(ctx, feedURL)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if info != nil {
				t.Fatalf("expected empty result, got %+v", info)
			}

			// A later successful listing is picked up.
			reader.refs[feedURL] = sampleRefs()
			info, err = cache.GetFromFeedURL(ctx, feedURL)
			if err != nil {
				t.Fatalf("retry get: %v", err)
			}
			if diff := cmp.Diff(3, info.Len()); diff != "" {
				t.Errorf("item count after retry (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{
		feedURLs: map[string]string{"https://example.com/": feedURL},
		titles:   map[string]string{feedURL: "Example"},
		refs:     map[string][]model.ItemRef{feedURL: sampleRefs()},
	}
	cache := New(newTestStore(t), reader, nil, discardLogger())

	t.Run("resolved", func(t *testing.T) {
		info, err := cache.Get(ctx, "https://example.com/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if diff := cmp.Diff(feedURL, info.FeedURL); diff != "" {
			t.Errorf("feed url (-want +got):\n%s", diff)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		info, err := cache.Get(ctx, "https://unknown.example.com/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if info != nil {
			t.Errorf("expected empty result, got %+v", info)
		}
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{
		titles: map[string]string{feedURL: "Example"},
		refs:   map[string][]model.ItemRef{feedURL: sampleRefs()},
	}
	store := newTestStore(t)
	cache := New(store, reader, nil, discardLogger())

	if _, err := cache.GetFromFeedURL(ctx, feedURL); err != nil {
		t.Fatalf("populate: %v", err)
	}
	reader.refs[feedURL] = append(reader.refs[feedURL], model.ItemRef{ID: "d", TimestampUsec: 400})

	info, err := cache.Refresh(ctx, feedURL)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, info.ItemIDs); diff != "" {
		t.Errorf("refreshed ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(300), reader.cutoffs[len(reader.cutoffs)-1]); diff != "" {
		t.Errorf("refresh cutoff (-want +got):\n%s", diff)
	}

	stored, err := store.GetFeedInfo(ctx, feedURL)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if diff := cmp.Diff(info, stored); diff != "" {
		t.Errorf("stored info mismatch (-want +got):\n%s", diff)
	}

	missing, err := cache.Refresh(ctx, "https://missing.example.com/feed")
	if err != nil {
		t.Fatalf("refresh missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for uncached feed, got %+v", missing)
	}
}

// racingStore stores a competing snapshot right before the cache's own
// insert, as a concurrent miss for the same feed would.
type racingStore struct {
	*storage.SQLite
	winner *model.FeedInfo
}

func (s *racingStore) CreateFeedInfo(ctx context.Context, info *model.FeedInfo) error {
	if err := s.SQLite.CreateFeedInfo(ctx, s.winner); err != nil {
		return err
	}
	return s.SQLite.CreateFeedInfo(ctx, info)
}

func TestGetFromFeedURLReturnsStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	winner := model.NewFeedInfo(feedURL, "First Writer", sampleRefs()[:2])
	store := &racingStore{SQLite: newTestStore(t), winner: winner}
	reader := &fakeReader{
		titles: map[string]string{feedURL: "Example"},
		refs:   map[string][]model.ItemRef{feedURL: sampleRefs()},
	}
	cache := New(store, reader, nil, discardLogger())

	got, err := cache.GetFromFeedURL(ctx, feedURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(winner, got); diff != "" {
		t.Errorf("expected the stored snapshot (-want +got):\n%s", diff)
	}
}
