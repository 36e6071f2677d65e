package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/Fantasim/fcfsweep/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup initializes the global slog logger. Console output is colored text (tint) or JSON;
// when logDir is set, JSON lines are also appended to a daily log file.
// Returns an io.Closer that the caller should close on shutdown.
func Setup(levelStr, format, logDir string) (io.Closer, error) {
	level, err := parseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", levelStr, err)
	}

	handler, err := consoleHandler(os.Stdout, format, level)
	if err != nil {
		return nil, err
	}

	var closer io.Closer = nopCloser{}
	filename := ""

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
		}

		filename = fmt.Sprintf("%s%s.log", config.LogFilePrefix, time.Now().Format(config.LogFileDateFmt))
		logFilePath := filepath.Join(logDir, filename)

		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", logFilePath, err)
		}

		fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
		handler = &fanoutHandler{handlers: []slog.Handler{handler, fileHandler}}
		closer = file
	}

	slog.SetDefault(slog.New(handler))

	slog.Info("logging initialized",
		"level", levelStr,
		"format", format,
		"logDir", logDir,
		"logFile", filename,
	)

	if logDir != "" {
		removed := CleanOldLogs(logDir, config.LogMaxAgeDays)
		if removed > 0 {
			slog.Info("cleaned old log files", "removed", removed, "maxAgeDays", config.LogMaxAgeDays)
		}
	}

	return closer, nil
}

func consoleHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	switch format {
	case config.LogFormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case config.LogFormatText, "":
		return tint.NewHandler(w, &tint.Options{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					a.Value = slog.StringValue(a.Value.Time().UTC().Format(config.LogTimeLayout))
				}
				if s, ok := a.Value.Any().(string); ok && s == "" {
					return slog.Attr{}
				}
				return a
			},
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// CleanOldLogs deletes log files in logDir that are older than maxAgeDays.
// Returns the number of files removed.
func CleanOldLogs(logDir string, maxAgeDays int) int {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	removed := 0

	entries, err := os.ReadDir(logDir)
	if err != nil {
		slog.Warn("failed to read log directory for cleanup", "logDir", logDir, "error", err)
		return 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, config.LogFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			fullPath := filepath.Join(logDir, name)
			if err := os.Remove(fullPath); err != nil {
				slog.Warn("failed to remove old log file", "file", fullPath, "error", err)
			} else {
				removed++
			}
		}
	}

	return removed
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}
