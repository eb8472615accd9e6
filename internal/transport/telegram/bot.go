// Package telegram is the bot transport: the long-poll adapter, the
// subscribe dialog and the Notifier used by the background checker.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"terminbot/internal/booking"
	"terminbot/internal/catalog"
	"terminbot/internal/scheduler"
	"terminbot/internal/subscription"
	"terminbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outbound messages (Telegram flood control).
	RatePerSec int
}

type Bot struct {
	bot *tele.Bot
	log logx.Logger

	limiter *rate.Limiter
	router  *Router

	cancel context.CancelFunc
}

func New(cfg Config, cat *catalog.Service, probe *booking.Probe, sched *scheduler.Service, store subscription.Store, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:     b,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
	bot.router = newRouter(b, cat, probe, sched, store, log)
	return bot, nil
}

func (b *Bot) Start(ctx context.Context) {
	b.router.register()

	rctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go func() {
		<-rctx.Done()
		b.bot.Stop()
	}()
	go func() {
		b.log.Info("polling started")
		b.bot.Start()
		b.log.Info("polling stopped")
	}()
}

func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Send implements the checker's Notifier. Best-effort: errors are returned
// for logging, never retried here.
func (b *Bot) Send(ctx context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return errors.New("malformed user id: " + userID)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = b.bot.Send(tele.ChatID(chatID), text)
	return err
}
