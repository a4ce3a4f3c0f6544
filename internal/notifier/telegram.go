package notifier

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// timeLayout matches the it-IT locale the dashboard's operator reads.
const timeLayout = "02/01/2006 15:04:05"

// botAPI is the slice of the Telegram bot client the notifier uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends outage alerts to a single fixed chat via a
// Telegram bot. When the bot token or chat ID is missing the notifier
// stays disabled and every send becomes a logged no-op.
type TelegramNotifier struct {
	bot     botAPI
	chatID  int64
	enabled bool
	logger  zerolog.Logger
}

// NewTelegramNotifier creates a TelegramNotifier from the bot token and
// chat ID. Missing credentials disable alerting instead of failing, so
// the rest of the system keeps running without an operator channel.
func NewTelegramNotifier(token, chatID string, logger zerolog.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		logger.Warn().Msg("Telegram not configured, alerts disabled")
		return &TelegramNotifier{logger: logger}, nil
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info().Msg("Telegram notifier active")
	return &TelegramNotifier{
		bot:     bot,
		chatID:  id,
		enabled: true,
		logger:  logger,
	}, nil
}

// SendPowerOffAlert announces a detected outage with the time of the
// last known-good heartbeat.
func (t *TelegramNotifier) SendPowerOffAlert(lastHeartbeat time.Time) error {
	message := fmt.Sprintf(`🚨 <b>CORRENTE OFFLINE</b> 🚨

🏠 <b>Casa Benevento</b>
⏰ <b>Ora:</b> %s
📡 <b>Ultimo heartbeat:</b> %s

⚡ Controllare salvavita!`,
		time.Now().Format(timeLayout), lastHeartbeat.Format(timeLayout))

	return t.sendAlert(message)
}

// SendPowerOnAlert announces recovery with the downtime in minutes.
func (t *TelegramNotifier) SendPowerOnAlert(downtimeMinutes int) error {
	message := fmt.Sprintf(`✅ <b>CORRENTE RIPRISTINATA</b> ✅

🏠 <b>Casa Benevento</b>
⏰ <b>Ora:</b> %s
⚡ <b>Downtime:</b> %d minuti

🎉 Sistema online!`,
		time.Now().Format(timeLayout), downtimeMinutes)

	return t.sendAlert(message)
}

// sendAlert delivers a rendered HTML message to the configured chat.
func (t *TelegramNotifier) sendAlert(message string) error {
	if !t.enabled {
		t.logger.Warn().Msg("Telegram not available, alert dropped")
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}

	t.logger.Info().Msg("Telegram alert sent")
	return nil
}
