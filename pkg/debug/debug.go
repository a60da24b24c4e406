// Package debug provides category-based debug logging for apiaccounts.
//
// Categories (WHAT to debug) come from APIACCOUNTS_DEBUG or config; the log
// level (HOW MUCH) comes from APIACCOUNTS_LOG_LEVEL or config. Environment
// wins over config.
//
//	debug.Log("reload", "generation installed", "accounts", n)
//
// Categories: accounts, auth, reload, config, source, transport, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// categories is read-only after Init.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("APIACCOUNTS_DEBUG"))
}

// Options configures Init.
type Options struct {
	Categories string // comma separated
	Level      string // TRACE, DEBUG, INFO, WARN, ERROR
	Format     string // "text" (default) or "json"
	Output     io.Writer
}

// Init configures debug categories and installs the default slog logger.
func Init(opts Options) {
	cats := os.Getenv("APIACCOUNTS_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	categories = parseCategories(cats)

	level := os.Getenv("APIACCOUNTS_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category. No-op when the category
// is disabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redact masks a secret for log output, keeping only its length class.
func Redact(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) < 8:
		return "***"
	default:
		return secret[:2] + "***"
	}
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
