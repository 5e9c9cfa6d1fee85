package log

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// SetupLogger installs the process-wide slog default and the package provider.
// format is "json" (CloudLogging field names) or "text".
func SetupLogger(w io.Writer, loglevel, format string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	ops := slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     levelVar,
	}

	var handler slog.Handler
	switch format {
	case "json", "":
		// Replace attributes to convert to CloudLogging format.
		ops.ReplaceAttr = func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			case slog.SourceKey:
				attr.Key = "logging.googleapis.com/sourceLocation"
			}
			return attr
		}
		handler = slog.NewJSONHandler(w, &ops)
	case "text":
		handler = slog.NewTextHandler(w, &ops)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	logger := slog.New(WrapByErrFmtHandler(handler))
	slog.SetDefault(logger)
	SetProvider(&slogProvider{logger: logger, level: levelVar})
	return nil
}

// ToLogLevel parses one of debug, info, warn or error.
func ToLogLevel(level string) (slog.Level, error) {
	switch level {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
