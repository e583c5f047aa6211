package bot

import (
	"context"
	"errors"
	"fmt"

	"feed_playback/internal/model"
	"feed_playback/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Feed Playback!

Replay the archive of a feed into a reader stream, one item at a time.

Quick start:
1. /lookup <url> - check that a feed can be played back
2. /subscribe <url> <YYYY-MM-DD> <1d|2d|1w> - start a playback

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Feeds:
/lookup <url> - resolve a page or feed URL and show its summary
/refresh <feed_url> - pick up items published since the feed was cached

Subscriptions:
/subscribe <url> <YYYY-MM-DD> <1d|2d|1w> - play back items from the date on
/info <id> - playback progress
/advance <id> - push the next item now

Frequencies: 1d every day, 2d every two days, 1w every week`)
}

func (b *Bot) handleLookup(ctx context.Context, chatID int64, args string) {
	u, err := ParseURLArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /lookup <url>")
		return
	}

	info, err := b.feeds.Get(ctx, u)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if info == nil {
		b.reply(chatID, fmt.Sprintf("No feed found for %s.", u))
		return
	}
	b.reply(chatID, FormatFeedInfo(info))
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseSubscribeArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	info, err := b.feeds.Get(ctx, parsed.URL)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if info == nil {
		b.reply(chatID, fmt.Sprintf("No feed found for %s.", parsed.URL))
		return
	}

	sub, err := b.playback.CreateSubscription(ctx, info.FeedURL, parsed.StartDate, parsed.Frequency)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to create subscription: %v", err))
		return
	}

	title, body := IntroNote(sub, info)
	if err := b.playback.CreateReaderStream(ctx, sub, info.FeedURL, title, body); err != nil {
		b.reply(chatID, fmt.Sprintf("Subscription %s created but its stream could not be started: %v", sub.ID, err))
		return
	}

	b.log.Info("subscription started", "subscription_id", sub.ID, "chat_id", chatID)
	b.reply(chatID, FormatSubscription(sub, info))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}

	sub, ok := b.lookupSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	progress, err := b.playback.Status(ctx, sub)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatProgress(sub, progress))
}

func (b *Bot) handleAdvance(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /advance <id>")
		return
	}

	sub, ok := b.lookupSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.playback.Advance(ctx, sub); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	progress, err := b.playback.Status(ctx, sub)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Subscription %s advanced.", sub.ID))
		return
	}
	b.reply(chatID, FormatProgress(sub, progress))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64, args string) {
	u, err := ParseURLArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /refresh <feed_url>")
		return
	}

	info, err := b.feeds.Refresh(ctx, u)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if info == nil {
		b.reply(chatID, fmt.Sprintf("Feed %s is not cached yet. Use /lookup first.", u))
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed \"%s\" now has %d items.", info.Title, info.Len()))
}

func (b *Bot) lookupSubscription(ctx context.Context, chatID int64, id string) (*model.Subscription, bool) {
	sub, err := b.subs.GetSubscription(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Subscription %s not found.", id))
		return nil, false
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return nil, false
	}
	return sub, true
}
