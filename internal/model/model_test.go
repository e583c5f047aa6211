package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFeedInfoJSON(t *testing.T) {
	tests := []struct {
		name string
		info *FeedInfo
		want FeedInfoJSON
	}{
		{
			name: "with items",
			info: NewFeedInfo("https://example.com/feed", "Example", []ItemRef{
				{ID: "a", TimestampUsec: 1_500_000},
				{ID: "b", TimestampUsec: 2_500_000},
			}),
			want: FeedInfoJSON{
				FeedURL:                 "https://example.com/feed",
				FeedTitle:               "Example",
				ItemCount:               2,
				OldestItemTimestampMsec: 1500,
			},
		},
		{
			name: "no items",
			info: NewFeedInfo("https://example.com/empty", "Empty", nil),
			want: FeedInfoJSON{
				FeedURL:                 "https://example.com/empty",
				FeedTitle:               "Empty",
				ItemCount:               0,
				OldestItemTimestampMsec: -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.info.JSON()); diff != "" {
				t.Errorf("JSON() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in         string
		want       Frequency
		wantPeriod int
		wantErr    bool
	}{
		{in: "1d", want: Daily, wantPeriod: 1},
		{in: "2d", want: EveryTwoDays, wantPeriod: 2},
		{in: "1w", want: Weekly, wantPeriod: 7},
		{in: "3d", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("frequency mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantPeriod, got.Period()); diff != "" {
				t.Errorf("period mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubscriptionURLs(t *testing.T) {
	sub := &Subscription{ReaderStreamID: "user/42/label/My Feed (abc)"}

	want := SubscriptionJSON{
		FeedURL:   "http://www.google.com/reader/public/atom/user/42/label/My%20Feed%20%28abc%29",
		ReaderURL: "http://www.google.com/reader/view/user/42/label/My%20Feed%20%28abc%29",
	}
	if diff := cmp.Diff(want, sub.JSON()); diff != "" {
		t.Errorf("JSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestQuotePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "label with punctuation", in: "user/42/label/My Feed: A&B (abc-_d)", want: "user/42/label/My%20Feed%3A%20A%26B%20%28abc-_d%29"},
		{name: "feed url keeps slashes", in: "https://example.com/feed.xml?x=1", want: "https%3A//example.com/feed.xml%3Fx%3D1"},
		{name: "non ascii", in: "é~", want: "%C3%A9~"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, QuotePath(tt.in)); diff != "" {
				t.Errorf("QuotePath(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}
