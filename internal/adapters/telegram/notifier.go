package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/pkg/logger"
)

// Notifier pushes critical risk alerts to the operator chat. Emergency
// halts are the one condition surfaced loudly; analytics noise stays in
// the logs.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	cfg    *config.TelegramConfig
}

// NewNotifier creates new Telegram notifier
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	return &Notifier{
		api:    bot,
		chatID: cfg.ChatID,
		cfg:    cfg,
	}, nil
}

// AlertEmergencyHalt notifies the operator about an emergency halt
func (n *Notifier) AlertEmergencyHalt(reason string) error {
	if !n.cfg.AlertOnHalts {
		return nil
	}

	msg := fmt.Sprintf(
		"🚨 *EMERGENCY HALT*\n\nReason: %s\nTime: %s\n\nTrading is blocked until the halt is cleared.",
		reason,
		time.Now().Format("15:04:05"),
	)

	return n.sendMarkdown(msg)
}

// AlertHaltCleared notifies the operator that the halt was cleared
func (n *Notifier) AlertHaltCleared(reason string) error {
	if !n.cfg.AlertOnHalts {
		return nil
	}

	msg := fmt.Sprintf(
		"✅ *Emergency halt cleared*\n\nReason: %s\nTime: %s",
		reason,
		time.Now().Format("15:04:05"),
	)

	return n.sendMarkdown(msg)
}

// AlertRiskLimit notifies the operator about a limit warning
func (n *Notifier) AlertRiskLimit(severity, message string) error {
	if !n.cfg.AlertOnLimits {
		return nil
	}

	emoji := "⚠️"
	if severity == "critical" {
		emoji = "🚨"
	}

	msg := fmt.Sprintf("%s *Risk alert (%s)*\n\n%s", emoji, severity, message)

	return n.sendMarkdown(msg)
}

func (n *Notifier) sendMarkdown(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	_, err := n.api.Send(msg)
	if err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
