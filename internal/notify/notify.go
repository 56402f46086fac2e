package notify

import "log/slog"

// Severity of a user-visible notification. Every recovered failure and
// every observational side effect surfaces as one of these; none of
// them crash the session.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives transient, dismissible operator notifications.
// The rendering layer is out of scope here; the default sink logs.
type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(level Level, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch level {
	case LevelError:
		logger.Error(message, "notification", level)
	case LevelWarning:
		logger.Warn(message, "notification", level)
	default:
		logger.Info(message, "notification", level)
	}
}

// Func adapts a function to the Notifier interface.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }
