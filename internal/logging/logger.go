// Package logging builds the structured logger used throughout the bridge,
// extending the teacher's slog.New(handler)/WrapSlog shape to the wider
// eight-level scale, sink bitmask, and rotation/fsync knobs the CLI exposes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Level extends slog's four built-in levels to the eight-value scale the
// CLI's --log-level enum names. slog.Level is just an int, so unknown
// values round-trip through comparisons exactly like the built-in ones.
type Level slog.Level

const (
	LevelDebug  Level = Level(slog.LevelDebug) // -4
	LevelInfo   Level = Level(slog.LevelInfo)  // 0
	LevelNotice Level = 2
	LevelWarn   Level = Level(slog.LevelWarn) // 4
	LevelError  Level = Level(slog.LevelError) // 8
	LevelCrit   Level = 12
	LevelAlert  Level = 16
	LevelFatal  Level = 20
)

var levelNames = map[Level]string{
	LevelDebug:  "dbg",
	LevelInfo:   "info",
	LevelNotice: "notice",
	LevelWarn:   "warn",
	LevelError:  "error",
	LevelCrit:   "crit",
	LevelAlert:  "alert",
	LevelFatal:  "fatal",
}

// ParseLevel accepts any of the colon-joined enum names from the CLI table
// ("fatal:alert:crit:error:warn:notice:info:dbg").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dbg", "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "crit", "critical":
		return LevelCrit, nil
	case "alert":
		return LevelAlert, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Sink is a bitmask of log destinations, matching the CLI's --log-output
// bitmask-of-log-sinks option.
type Sink uint8

const (
	SinkStdout Sink = 1 << iota
	SinkStderr
	SinkFile
)

// Config mirrors the logging portion of the CLI/INI option table.
type Config struct {
	Level  Level
	Output Sink
	Path   string

	RotateNumber int
	RotateSize   int64
	FsyncEvery   int64
	FsyncLevel   Level

	ShowFileInfo bool
	ShowFuncInfo bool
	Colors       bool
	Prefix       string
	JSON         bool
}

// Logger wraps a *slog.Logger with the fatal-then-exit helper and a Flush
// method the outer driver calls on SIGUSR1.
type Logger struct {
	*slog.Logger
	file *rotatingFile
}

// New builds a Logger from cfg. The returned Logger owns its file sink, if
// any; callers should defer Close.
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer
	var rf *rotatingFile

	if cfg.Output&SinkStdout != 0 {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output&SinkStderr != 0 {
		writers = append(writers, os.Stderr)
	}
	if cfg.Output&SinkFile != 0 {
		if cfg.Path == "" {
			return nil, fmt.Errorf("logging: --log-path required when the file sink is selected")
		}
		var err error
		rf, err = openRotatingFile(cfg.Path, cfg.RotateSize, cfg.RotateNumber, cfg.FsyncEvery)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rf)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var w io.Writer = io.MultiWriter(writers...)
	if cfg.Colors {
		w = &colorWriter{w: w}
	}

	opts := &slog.HandlerOptions{
		Level: slog.Level(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := Level(a.Value.Any().(slog.Level))
				a.Value = slog.StringValue(lvl.String())
			}
			if !cfg.ShowFileInfo && a.Key == slog.SourceKey {
				return slog.Attr{}
			}
			return a
		},
		AddSource: cfg.ShowFileInfo || cfg.ShowFuncInfo,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if rf != nil && cfg.FsyncLevel != 0 {
		handler = &fsyncHandler{Handler: handler, file: rf, threshold: cfg.FsyncLevel}
	}

	sl := slog.New(handler)
	if cfg.Prefix != "" {
		sl = sl.With("component", cfg.Prefix)
	}
	return &Logger{Logger: sl, file: rf}, nil
}

// Fatal logs at the fatal level and exits the process, matching the
// teacher's logging.Fatal helper.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Log(context.Background(), slog.Level(LevelFatal), msg, args...)
	os.Exit(1)
}

// Flush forces any buffered file sink to disk. Called by the outer driver
// on SIGUSR1.
func (l *Logger) Flush() error {
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// WrapStd adapts a *slog.Logger to the *log.Logger interface goburrow/modbus
// wants for its handler's debug trace output.
func WrapStd(sl *slog.Logger, args ...any) *log.Logger {
	return log.New(slogWriter{sl: sl.With(args...)}, "", 0)
}

type slogWriter struct {
	sl *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	w.sl.Debug(msg)
	return len(p), nil
}
