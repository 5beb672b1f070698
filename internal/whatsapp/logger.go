package whatsapp

import (
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

type slogLogger struct {
	base   *slog.Logger
	logger *slog.Logger
	module string
}

// NewLogger adapts logger to the whatsmeow logging interface, tagging records
// with module.
func NewLogger(logger *slog.Logger, module string) waLog.Logger {
	return &slogLogger{base: logger, logger: logger.With(slog.String("module", module)), module: module}
}

func (l *slogLogger) Errorf(msg string, args ...any) { l.logger.Error(fmt.Sprintf(msg, args...)) }
func (l *slogLogger) Warnf(msg string, args ...any)  { l.logger.Warn(fmt.Sprintf(msg, args...)) }
func (l *slogLogger) Infof(msg string, args ...any)  { l.logger.Info(fmt.Sprintf(msg, args...)) }
func (l *slogLogger) Debugf(msg string, args ...any) { l.logger.Debug(fmt.Sprintf(msg, args...)) }

func (l *slogLogger) Sub(module string) waLog.Logger {
	name := l.module + "/" + module
	return &slogLogger{base: l.base, logger: l.base.With(slog.String("module", name)), module: name}
}
