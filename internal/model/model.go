// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
)

const (
	publicAtomBaseURL = "http://www.google.com/reader/public/atom/"
	readerViewBaseURL = "http://www.google.com/reader/view/"
)

// ItemRef identifies a single feed item as listed by the reader service.
type ItemRef struct {
	ID            string
	TimestampUsec int64
}

// FeedInfo is the cached metadata of a feed: its title and the item list
// ordered oldest to newest. ItemIDs and ItemTimestampsUsec are aligned.
type FeedInfo struct {
	FeedURL            string
	Title              string
	ItemIDs            []string
	ItemTimestampsUsec []int64
}

// NewFeedInfo builds a FeedInfo from item refs that are already sorted.
func NewFeedInfo(feedURL, title string, refs []ItemRef) *FeedInfo {
	info := &FeedInfo{
		FeedURL:            feedURL,
		Title:              title,
		ItemIDs:            make([]string, 0, len(refs)),
		ItemTimestampsUsec: make([]int64, 0, len(refs)),
	}
	for _, ref := range refs {
		info.ItemIDs = append(info.ItemIDs, ref.ID)
		info.ItemTimestampsUsec = append(info.ItemTimestampsUsec, ref.TimestampUsec)
	}
	return info
}

// Len returns the number of items in the feed.
func (f *FeedInfo) Len() int {
	return len(f.ItemIDs)
}

// NewestTimestampUsec returns the timestamp of the newest item, or 0.
func (f *FeedInfo) NewestTimestampUsec() int64 {
	if len(f.ItemTimestampsUsec) == 0 {
		return 0
	}
	return f.ItemTimestampsUsec[len(f.ItemTimestampsUsec)-1]
}

// FeedInfoJSON is the API representation of a FeedInfo.
type FeedInfoJSON struct {
	FeedURL                 string `json:"feedUrl"`
	FeedTitle               string `json:"feedTitle"`
	ItemCount               int    `json:"itemCount"`
	OldestItemTimestampMsec int64  `json:"oldestItemTimestampMsec"`
}

// JSON returns the flat representation used in API responses.
// OldestItemTimestampMsec is -1 for a feed without items.
func (f *FeedInfo) JSON() FeedInfoJSON {
	oldest := int64(-1)
	if len(f.ItemTimestampsUsec) > 0 {
		oldest = f.ItemTimestampsUsec[0] / 1000
	}
	return FeedInfoJSON{
		FeedURL:                 f.FeedURL,
		FeedTitle:               f.Title,
		ItemCount:               f.Len(),
		OldestItemTimestampMsec: oldest,
	}
}

// Frequency is how often a subscription advances.
type Frequency string

// Supported frequencies.
const (
	Daily        Frequency = "1d"
	EveryTwoDays Frequency = "2d"
	Weekly       Frequency = "1w"
)

// Frequencies lists every supported frequency.
var Frequencies = []Frequency{Daily, EveryTwoDays, Weekly}

// ParseFrequency validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case Daily, EveryTwoDays, Weekly:
		return f, nil
	default:
		return "", fmt.Errorf("invalid frequency %q, use: 1d, 2d, 1w", s)
	}
}

// Period returns the length of the frequency's cycle in days.
func (f Frequency) Period() int {
	switch f {
	case EveryTwoDays:
		return 2
	case Weekly:
		return 7
	default:
		return 1
	}
}

// Subscription plays a feed back into a reader stream, one item per advance.
type Subscription struct {
	ID             string
	ReaderStreamID string
	FeedURL        string
	Frequency      Frequency
	// FrequencyModulo is the day bucket, fixed at creation, on which the
	// subscription is due.
	FrequencyModulo int
	// Position is the index of the next item to play back.
	Position int
}

// PublicFeedURL returns the public Atom feed of the subscription's stream.
func (s *Subscription) PublicFeedURL() string {
	return publicAtomBaseURL + QuotePath(s.ReaderStreamID)
}

// ReaderURL returns the reader view of the subscription's stream.
func (s *Subscription) ReaderURL() string {
	return readerViewBaseURL + QuotePath(s.ReaderStreamID)
}

// SubscriptionJSON is the API representation of a Subscription.
type SubscriptionJSON struct {
	FeedURL   string `json:"feedUrl"`
	ReaderURL string `json:"readerUrl"`
}

// JSON returns the flat representation used in API responses.
func (s *Subscription) JSON() SubscriptionJSON {
	return SubscriptionJSON{
		FeedURL:   s.PublicFeedURL(),
		ReaderURL: s.ReaderURL(),
	}
}

// QuotePath percent-encodes every byte of s except ASCII letters, digits,
// "_.-~" and "/".
func QuotePath(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if pathSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func pathSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("_.-~/", c) >= 0
}
