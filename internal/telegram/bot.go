package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram API the handler talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot receives updates by long polling.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func New(token string, debug bool, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug
	return &Bot{api: api, logger: logger.Named("telegram")}, nil
}

// API returns the client used to send messages.
func (b *Bot) API() Sender {
	return b.api
}

// StartPolling hands every update to handle until ctx is done.
func (b *Bot) StartPolling(ctx context.Context, handle func(context.Context, tgbotapi.Update)) {
	b.logger.Info("authorized on account", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go handle(ctx, update)
		}
	}
}
