package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/ariadriver/internal/config"
)

// Field keys shared by every component that logs on behalf of a session or
// an operation. Log consumers filter on these, so they are part of the
// output contract.
const (
	SessionKey  = "session_id"
	KindKey     = "kind"
	SelectorKey = "selector"
	CodeKey     = "code"
	DetailKey   = "detail"
	LinkKey     = "link"
)

const ansiReset = "\x1b[0m"

// ansiColors maps the color names accepted in logger.colors to escape codes.
var ansiColors = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

// InitializeLogger installs the process wide logger. Only the first call
// has any effect.
func InitializeLogger(cfg config.LoggerConfig) {
	initializeLogger(cfg, zapcore.Lock(os.Stdout))
}

func initializeLogger(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg.Format, cfg.Colors), console, level)}
		if cfg.LogFile != "" {
			cores = append(cores, fileCore(cfg, level))
		}

		options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			options = append(options, zap.AddCaller())
		}

		logger := zap.New(zapcore.NewTee(cores...), options...).Named(cfg.ServiceName)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// fileCore writes JSON to a rotating file regardless of the console format.
func fileCore(cfg config.LoggerConfig, level zapcore.LevelEnabler) zapcore.Core {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(newEncoder("json", config.ColorConfig{}), sink, level)
}

func newEncoder(format string, colors config.ColorConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		ec.EncodeLevel = levelPalette(colors).encode
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// palette holds the resolved escape code per level. Levels without a known
// color name are printed plain.
type palette map[zapcore.Level]string

func levelPalette(c config.ColorConfig) palette {
	names := map[zapcore.Level]string{
		zapcore.DebugLevel:  c.Debug,
		zapcore.InfoLevel:   c.Info,
		zapcore.WarnLevel:   c.Warn,
		zapcore.ErrorLevel:  c.Error,
		zapcore.DPanicLevel: c.DPanic,
		zapcore.PanicLevel:  c.Panic,
		zapcore.FatalLevel:  c.Fatal,
	}
	p := make(palette, len(names))
	for level, name := range names {
		if code, ok := ansiColors[strings.ToLower(name)]; ok {
			p[level] = code
		}
	}
	return p
}

func (p palette) encode(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := level.CapitalString()
	if code, ok := p[level]; ok {
		label = code + label + ansiReset
	}
	enc.AppendString(label)
}

// ForSession returns the logger a component uses while serving one session.
// The component becomes a name segment and the session id a field. An empty
// id leaves the logger unbound and a nil logger yields a no-op one.
func ForSession(logger *zap.Logger, component, sessionID string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if component != "" {
		logger = logger.Named(component)
	}
	if sessionID == "" {
		return logger
	}
	return logger.With(zap.String(SessionKey, sessionID))
}

// OperationFields identifies one widget operation in a log line.
func OperationFields(kind, selector string) []zap.Field {
	return []zap.Field{zap.String(KindKey, kind), zap.String(SelectorKey, selector)}
}

// DiagnosticFields renders an advisory diagnostic. The link field is left
// out when there is no documentation to point at.
func DiagnosticFields(code, detail, link string) []zap.Field {
	fields := []zap.Field{zap.String(CodeKey, code), zap.String(DetailKey, detail)}
	if link != "" {
		fields = append(fields, zap.String(LinkKey, link))
	}
	return fields
}

// GetLogger returns the process wide logger, or a development logger named
// "fallback" when InitializeLogger has not run.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("fallback")
}

// Sync flushes buffered entries. Failures go to stderr since the logger
// itself is what failed.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}
