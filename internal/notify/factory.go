package notify

import (
	"fmt"
	"log/slog"

	"outgo/internal/config"
)

// FromConfig builds the notifier the configuration selects.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "telegram":
		return NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	case "log", "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
