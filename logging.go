package givemart

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogOptions struct {
	Debug bool

	// Console receives human readable output. Colors are used only for terminals.
	Console io.Writer
	// File, if set, receives JSON lines, rotated every 50MB.
	File string

	// Extra handlers get every record as well, e.g. an OpenTelemetry bridge.
	Extra []slog.Handler
}

func (o LogOptions) level() slog.Level {
	if o.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger. The returned closer flushes the log file.
func NewLogger(opts LogOptions) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	handlers := []slog.Handler{consoleHandler(opts.Console, opts.level())}

	if opts.File != "" {
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 10,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.level()}))
		closer = w
	}
	handlers = append(handlers, opts.Extra...)

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer
}

func consoleHandler(out io.Writer, level slog.Level) slog.Handler {
	if out == nil {
		out = os.Stderr
	}
	return tint.NewHandler(out, &tint.Options{
		AddSource:  level == slog.LevelDebug,
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !colorful(out),
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if _, isErr := attr.Value.Any().(error); isErr {
				return tint.Attr(9, attr)
			}
			return attr
		},
	})
}

func colorful(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
