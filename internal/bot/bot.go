package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feed_playback/internal/config"
	"feed_playback/internal/model"
	"feed_playback/internal/playback"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// FeedInfos looks up and refreshes cached feed info.
type FeedInfos interface {
	Get(ctx context.Context, htmlOrFeedURL string) (*model.FeedInfo, error)
	Refresh(ctx context.Context, feedURL string) (*model.FeedInfo, error)
}

// Playback is the subscription lifecycle driven by operator commands.
type Playback interface {
	CreateSubscription(ctx context.Context, feedURL string, startDate time.Time, freq model.Frequency) (*model.Subscription, error)
	CreateReaderStream(ctx context.Context, sub *model.Subscription, introURL, introTitle, introBody string) error
	Advance(ctx context.Context, sub *model.Subscription) error
	Status(ctx context.Context, sub *model.Subscription) (playback.Progress, error)
}

// Subscriptions loads stored subscriptions by id.
type Subscriptions interface {
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
}

// Bot is the Telegram bot operators use to manage playback subscriptions.
type Bot struct {
	api      telegramAPI
	feeds    FeedInfos
	playback Playback
	subs     Subscriptions
	cfg      *config.Config
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token and playback services.
func New(token string, feeds FeedInfos, pb Playback, subs Subscriptions, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		feeds:    feeds,
		playback: pb,
		subs:     subs,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "lookup":
		b.handleLookup(ctx, chatID, args)
	case "subscribe":
		b.handleSubscribe(ctx, chatID, args)
	case "info":
		b.handleInfo(ctx, chatID, args)
	case "advance":
		b.handleAdvance(ctx, chatID, args)
	case "refresh":
		b.handleRefresh(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
