package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/model"
)

// TelegramNotifier posts pass reports to one chat through a bot.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	bus    *logbus.Bus
}

func NewTelegramNotifier(cfg config.TelegramConfig, bus *logbus.Bus) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, bus: bus}, nil
}

func newTelegramNotifierWithBot(bot *tgbotapi.BotAPI, chatID int64, bus *logbus.Bus) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, bus: bus}
}

func (n *TelegramNotifier) NotifyPassCompleted(ctx context.Context, pass model.PassSummary) {
	if ctx.Err() != nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, passSubject(pass)+"\n\n"+passText(pass))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		if n.bus != nil {
			n.bus.Log("warn", "telegram report failed", map[string]any{
				"pass":  pass.Seq,
				"error": err.Error(),
			})
		}
		return
	}
	if n.bus != nil {
		n.bus.Log("info", "telegram report sent", map[string]any{"pass": pass.Seq})
	}
}
