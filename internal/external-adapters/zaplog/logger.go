// Package zaplog implements the domain Logger with go.uber.org/zap.
package zaplog

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ochairo/redist/internal/domain/interfaces"
)

const (
	flagLogEncoding = "log-encoding"
	flagLogLevel    = "log-level"
)

var levelStrings = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// Options configures the logger from command line flags
type Options struct {
	LogEncoding string
	LogLevel    string
}

// BindFlags registers --log-encoding and --log-level on fs
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogEncoding, flagLogEncoding, "console",
		"Log encoding format. Can be 'json' or 'console'.")
	fs.StringVar(&o.LogLevel, flagLogLevel, "info",
		"Log verbosity level. Can be one of 'debug', 'info', 'warn', 'error'.")
}

// Logger adapts a *zap.Logger to interfaces.Logger
type Logger struct {
	z *zap.Logger
}

var _ interfaces.Logger = (*Logger)(nil)

// New builds a logger writing to w with ISO8601 timestamps
func New(opts Options, w io.Writer) (*Logger, error) {
	level, ok := levelStrings[opts.LogLevel]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", opts.LogLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.LogEncoding {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log encoding %q", opts.LogEncoding)
	}

	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return &Logger{z: zap.New(core)}, nil
}

// Wrap adapts an existing zap logger
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.z.Debug(msg, toZap(fields)...)
}

// Info logs at info level
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.z.Info(msg, toZap(fields)...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.z.Warn(msg, toZap(fields)...)
}

// Error logs at error level
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.z.Error(msg, toZap(fields)...)
}

// With returns a child logger carrying fields
func (l *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{z: l.z.With(toZap(fields)...)}
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func toZap(fields []interfaces.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
