package rtc

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loggerFactory routes pion's internal logs into zerolog.
type loggerFactory struct {
	base zerolog.Logger
}

func newLoggerFactory() logging.LoggerFactory {
	return &loggerFactory{base: log.With().Str("module", "rtc.pion").Logger()}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{zl: f.base.With().Str("scope", scope).Logger()}
}

type pionLogger struct {
	zl zerolog.Logger
}

func (l *pionLogger) Trace(msg string)                  { l.zl.Trace().Msg(msg) }
func (l *pionLogger) Tracef(format string, args ...any) { l.zl.Trace().Msgf(format, args...) }
func (l *pionLogger) Debug(msg string)                  { l.zl.Debug().Msg(msg) }
func (l *pionLogger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *pionLogger) Info(msg string)                   { l.zl.Info().Msg(msg) }
func (l *pionLogger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *pionLogger) Warn(msg string)                   { l.zl.Warn().Msg(msg) }
func (l *pionLogger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *pionLogger) Error(msg string)                  { l.zl.Error().Msg(msg) }
func (l *pionLogger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
