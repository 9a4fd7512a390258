package notifier

import (
	"io"

	"pricewatch/internal/config"
	"pricewatch/internal/logger"
)

// FromConfig picks the configured channel. Telegram wins over Twilio when
// both are enabled; with neither, alerts go to the console.
func FromConfig(cfg config.NotifyConfig, console io.Writer) Notifier {
	if tg := cfg.Telegram; tg.Enabled {
		logger.Infof("notifier: telegram chat=%s", tg.ChatID)
		return NewTelegram(tg.BotToken, tg.ChatID)
	}
	if tw := cfg.Twilio; tw.Enabled {
		logger.Infof("notifier: twilio sms to=%s", maskNumber(tw.To))
		return NewTwilio(tw.AccountSID, tw.AuthToken, tw.From, tw.To)
	}
	logger.Infof("notifier: no transport configured, using console")
	return NewConsole(console)
}

func maskNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	return "***" + n[len(n)-4:]
}
