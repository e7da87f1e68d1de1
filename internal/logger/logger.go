package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts DEBUG/INFO/WARN/ERROR (any case) to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Config selects the level, encoding and destination of log output.
type Config struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string

	// Format is "text" (human-readable console lines) or "json".
	Format string

	// Output is "stdout", "stderr" or a file path. Files are rotated.
	Output string

	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  = newSugar(zapcore.AddSync(os.Stdout), "text")
	closer func() error
)

// Configure replaces the global logger. It is safe to call more than once;
// a previously opened log file is closed.
func Configure(cfg Config) error {
	lvl := LevelInfo
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		lvl = parsed
	}

	format := strings.ToLower(cfg.Format)
	switch format {
	case "", "text":
		format = "text"
	case "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var (
		sink      zapcore.WriteSyncer
		sinkClose func() error
	)
	switch out := cfg.Output; strings.ToLower(out) {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	case "stderr":
		sink = zapcore.AddSync(os.Stderr)
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   out,
			MaxSize:    withDefault(cfg.MaxSizeMB, 100),
			MaxBackups: withDefault(cfg.MaxBackups, 3),
			MaxAge:     withDefault(cfg.MaxAgeDays, 28),
		}
		sink = zapcore.AddSync(rotator)
		sinkClose = rotator.Close
	}

	mu.Lock()
	defer mu.Unlock()

	_ = sugar.Sync()
	if closer != nil {
		_ = closer()
	}

	level.SetLevel(lvl.zapLevel())
	sugar = newSugar(sink, format)
	closer = sinkClose
	return nil
}

// SetLevel changes the minimum level. Unknown levels are ignored.
func SetLevel(lvl string) {
	parsed, err := ParseLevel(lvl)
	if err != nil {
		return
	}
	level.SetLevel(parsed.zapLevel())
}

// IsDebug reports whether debug output is enabled.
func IsDebug() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func newSugar(sink zapcore.WriteSyncer, format string) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = " "
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(encoder, sink, level)).Sugar()
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}
