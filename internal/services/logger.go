package services

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger tags every event with the owning service.
type ServiceLogger struct {
	logger zerolog.Logger
}

func NewServiceLogger(base zerolog.Logger, svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{
		logger: base.With().Str("service", svc.ID()).Logger(),
	}
}

// NopLogger discards everything; used by tests and library callers that do
// not care about logs.
func NopLogger(svc ServiceIdentifier) *ServiceLogger {
	return NewServiceLogger(zerolog.Nop(), svc)
}

func (l *ServiceLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ServiceLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ServiceLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *ServiceLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *ServiceLogger) Logger() zerolog.Logger {
	return l.logger
}

// NewBaseLogger builds the process logger handed to every service. Console
// output is meant for the CLI; the service logs JSON.
func NewBaseLogger(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
