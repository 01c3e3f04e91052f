package bridge

import "log/slog"

// Notifier surfaces a share to the user. Host notification APIs are
// environment-specific, so the default just logs; a desktop build can
// plug in whatever the platform offers.
type Notifier interface {
	Notify(title, message, url string)
}

type LogNotifier struct{}

func (LogNotifier) Notify(title, message, url string) {
	slog.Info("notification", "title", title, "message", message, "url", url)
}
