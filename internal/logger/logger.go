package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
)

// ParseLevel maps a config string to a slog level, falling back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Initialize installs the process logger writing to stdout.
func Initialize(lvl, format string) {
	InitializeWriter(os.Stdout, lvl, format)
}

// InitializeWriter installs the process logger writing to w. Format "json"
// selects the JSON handler, anything else the text handler.
func InitializeWriter(w io.Writer, lvl, format string) {
	level.Set(ParseLevel(lvl))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// SetLevel changes the level of the installed logger in place.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

func Get() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Initialize("info", "text")
		return Get()
	}
	return l
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	Get().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Get().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Get().ErrorContext(ctx, msg, args...)
}

// WithComponent tags records with the subsystem that emitted them
// (ledger, lifecycle, notify, ...).
func WithComponent(name string) *slog.Logger {
	return Get().With("component", name)
}

// WithRental tags records with the rental they concern.
func WithRental(rentalID int64) *slog.Logger {
	return Get().With("rental_id", rentalID)
}

// EnterMethod and ExitMethod trace call flow at debug level.
func EnterMethod(method string, args ...any) {
	Get().Debug("→ enter", append([]any{"method", method}, args...)...)
}

func ExitMethod(method string, args ...any) {
	Get().Debug("← exit", append([]any{"method", method}, args...)...)
}

// ExitMethodWithError logs at warn for expected business refusals and at
// error for everything else.
func ExitMethodWithError(method string, err error, args ...any) {
	all := append([]any{"method", method, "error", err}, args...)
	if isBusinessError(err) {
		Get().Warn("← exit with refusal", all...)
		return
	}
	Get().Error("← exit with error", all...)
}

func DatabaseCall(operation, table string, args ...any) {
	Get().Debug("→ db", append([]any{"operation", operation, "table", table}, args...)...)
}

func DatabaseResult(operation string, rows int64, err error, args ...any) {
	all := append([]any{"operation", operation, "rows", rows}, args...)
	if err != nil {
		Get().Error("← db failed", append(all, "error", err)...)
		return
	}
	Get().Debug("← db ok", all...)
}

func ExternalServiceCall(service, operation string, args ...any) {
	Get().Debug("→ external", append([]any{"service", service, "operation", operation}, args...)...)
}

func ExternalServiceResult(service, operation string, err error, args ...any) {
	all := append([]any{"service", service, "operation", operation}, args...)
	if err != nil {
		Get().Error("← external failed", append(all, "error", err)...)
		return
	}
	Get().Debug("← external ok", all...)
}

// businessErrors lets the domain package register its refusal sentinels
// without this package importing it.
var businessErrors struct {
	sync.RWMutex
	match func(error) bool
}

// SetBusinessErrorMatcher installs the predicate ExitMethodWithError uses to
// downgrade expected refusals to warnings.
func SetBusinessErrorMatcher(match func(error) bool) {
	businessErrors.Lock()
	businessErrors.match = match
	businessErrors.Unlock()
}

func isBusinessError(err error) bool {
	businessErrors.RLock()
	match := businessErrors.match
	businessErrors.RUnlock()
	return match != nil && match(err)
}
