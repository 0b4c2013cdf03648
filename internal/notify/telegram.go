// Package notify pushes trade decisions to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/strategy"
)

type sender interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
}

// Telegram sends one message per entry or exit. A nil *Telegram is a no-op.
type Telegram struct {
	bot  sender
	chat tb.Recipient
	log  zerolog.Logger
}

// NewTelegram connects to the bot API and resolves chatID.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	chat, err := b.ChatByID(strconv.FormatInt(chatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram chat %d: %w", chatID, err)
	}
	return &Telegram{bot: b, chat: chat, log: log}, nil
}

// Notify implements strategy.Notifier. Decisions without an action are ignored.
func (t *Telegram) Notify(ctx context.Context, d strategy.Decision) error {
	if t == nil || t.bot == nil || d.Action == strategy.ActionNone || d.Action == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Format(d)
	if _, err := t.bot.Send(t.chat, msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug().Str("action", string(d.Action)).Msg("telegram notified")
	return nil
}

// Format renders a decision as a single plain-text message.
func Format(d strategy.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Record.Ts.UTC().Format("2006-01-02 15:04"), strings.ToUpper(string(d.Action)))
	for _, tgt := range d.Targets {
		fmt.Fprintf(&b, " %s %+.2f", tgt.Symbol, tgt.Weight)
	}
	fmt.Fprintf(&b, " | z=%.3f spread=%.4f", d.Record.ZScore, d.Record.Spread)
	return b.String()
}
