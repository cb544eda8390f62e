package gateways

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ochairo/redist/internal/domain/interfaces"
)

// newLeveledLogger bridges retryablehttp request logging into the domain
// logger. Request chatter goes to debug.
func newLeveledLogger(log interfaces.Logger) retryablehttp.LeveledLogger {
	return &leveledLogger{log: log}
}

type leveledLogger struct {
	log interfaces.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, toFields(keysAndValues)...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, toFields(keysAndValues)...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, toFields(keysAndValues)...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, toFields(keysAndValues)...)
}

func toFields(keysAndValues []interface{}) []interfaces.Field {
	fields := make([]interfaces.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		var value interface{}
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fields = append(fields, interfaces.F(key, value))
	}
	return fields
}
