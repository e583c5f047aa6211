package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	"feed_playback/internal/model"
	"feed_playback/internal/playback"
)

// FormatFeedInfo renders the JSON summary of a feed.
func FormatFeedInfo(info *model.FeedInfo) string {
	data, err := json.MarshalIndent(info.JSON(), "", "  ")
	if err != nil {
		return fmt.Sprintf("%s (%d items)", info.Title, info.Len())
	}
	return string(data)
}

// FormatSubscription formats a newly created subscription.
func FormatSubscription(sub *model.Subscription, info *model.FeedInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subscribed to \"%s\" (%s).\n", info.Title, frequencyLabel(sub.Frequency))
	fmt.Fprintf(&b, "ID: %s\n", sub.ID)
	fmt.Fprintf(&b, "Feed: %s\n", sub.PublicFeedURL())
	fmt.Fprintf(&b, "Reader: %s", sub.ReaderURL())
	return b.String()
}

// FormatProgress formats the playback progress of a subscription.
func FormatProgress(sub *model.Subscription, p playback.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subscription %s\n", sub.ID)
	fmt.Fprintf(&b, "Source: %s\n", sub.FeedURL)
	fmt.Fprintf(&b, "Frequency: %s\n", frequencyLabel(sub.Frequency))
	if p.Exhausted {
		fmt.Fprintf(&b, "Progress: %d/%d [finished]\n", p.Position, p.Total)
	} else {
		fmt.Fprintf(&b, "Progress: %d/%d\n", p.Position, p.Total)
	}
	fmt.Fprintf(&b, "Feed: %s", sub.PublicFeedURL())
	return b.String()
}

// IntroNote returns the title and body of the note that opens a
// subscription's stream.
func IntroNote(sub *model.Subscription, info *model.FeedInfo) (string, string) {
	title := fmt.Sprintf("Playback of %s", info.Title)
	body := fmt.Sprintf("Items from %s will appear here %s, oldest first.", info.Title, frequencyLabel(sub.Frequency))
	return title, body
}

func frequencyLabel(f model.Frequency) string {
	switch f {
	case model.Daily:
		return "every day"
	case model.EveryTwoDays:
		return "every two days"
	case model.Weekly:
		return "every week"
	default:
		return string(f)
	}
}
