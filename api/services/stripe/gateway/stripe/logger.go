package stripegw

import (
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
)

var _ stripe.LeveledLoggerInterface = leveledLogger{}

// leveledLogger routes the SDK's printf-style logs into slog.
type leveledLogger struct{ logger *slog.Logger }

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "source", "stripe-go")
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...), "source", "stripe-go")
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "source", "stripe-go")
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "source", "stripe-go")
}
