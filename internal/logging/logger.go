package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var stderr = struct{ io.Writer }{os.Stderr}

type tTesting interface {
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Helper()
	Cleanup(f func())
}

// Configure sets the global zerolog logger. level is one of trace, debug, info,
// warn, error, fatal; format is console (default) or json.
func Configure(level, format string) {
	configure(strings.ToLower(level), strings.ToLower(format))
}

// ConfigureTestLogging routes log output through t.Log for the duration of a test.
func ConfigureTestLogging(t tTesting) {
	oldLogger := log.Logger
	oldContextLogger := zerolog.DefaultContextLogger
	configure("debug", "console", zerolog.ConsoleTestWriter(t))
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.DefaultContextLogger = oldContextLogger
	})
}

func configure(level, format string, opts ...func(w *zerolog.ConsoleWriter)) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	isTerminal := isatty.IsTerminal(os.Stdout.Fd())

	defaultConsole := func(w *zerolog.ConsoleWriter) {
		w.Out = stderr
		w.NoColor = !isTerminal
		w.TimeFormat = "15:04:05.999 |"
		w.PartsOrder = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}
	}
	opts = append([]func(w *zerolog.ConsoleWriter){defaultConsole}, opts...)

	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		// keep the last two path elements
		short := file
		seen := 0
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				seen++
				if seen >= 2 {
					short = file[i+1:]
					break
				}
			}
		}
		return short + ":" + strconv.Itoa(line)
	}

	var w io.Writer = zerolog.NewConsoleWriter(opts...)
	if format == "json" {
		w = os.Stdout
	}

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// WithComponent returns a child of the global logger tagged with a component name.
func WithComponent(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ContextWithTick attaches a tick id to the context logger.
func ContextWithTick(ctx context.Context, tickID string) context.Context {
	l := log.Ctx(ctx).With().Str("tick", tickID).Logger()
	return l.WithContext(ctx)
}

// LeveledLogger adapts zerolog to the key/value logger interface used by
// hashicorp/go-retryablehttp.
type LeveledLogger struct {
	l zerolog.Logger
}

func NewLeveledLogger(l zerolog.Logger) *LeveledLogger {
	return &LeveledLogger{l: l}
}

func (z *LeveledLogger) Error(msg string, kv ...interface{}) { z.emit(z.l.Error(), msg, kv) }
func (z *LeveledLogger) Info(msg string, kv ...interface{})  { z.emit(z.l.Info(), msg, kv) }
func (z *LeveledLogger) Debug(msg string, kv ...interface{}) { z.emit(z.l.Debug(), msg, kv) }
func (z *LeveledLogger) Warn(msg string, kv ...interface{})  { z.emit(z.l.Warn(), msg, kv) }

func (z *LeveledLogger) emit(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	e.Msg(msg)
}
