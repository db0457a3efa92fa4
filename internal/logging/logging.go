// Package logging adapts the host's zap logger to the optional reporting
// capability the parsers accept.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sessiontrace/sessiontrace/internal/parse"
)

// ParserLogger wraps a zap sugared logger behind parse.Logger.
type ParserLogger struct {
	sugar *zap.SugaredLogger
}

var _ parse.Logger = (*ParserLogger)(nil)

// New builds a console logger writing to stderr. verbose enables debug
// output; otherwise only warnings and errors are emitted.
func New(verbose bool) (*ParserLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ParserLogger{sugar: logger.Sugar()}, nil
}

// Wrap adapts an existing zap logger, e.g. the host's process-wide one.
func Wrap(logger *zap.Logger) *ParserLogger {
	return &ParserLogger{sugar: logger.Sugar()}
}

func (l *ParserLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ParserLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ParserLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ParserLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered log entries.
func (l *ParserLogger) Sync() error {
	return l.sugar.Sync()
}
