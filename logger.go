package livepers

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging sets up the global default logger with a TextHandler
// and configures the log level based on the LIVEPERS_LOG_LEVEL environment variable.
// It defaults to Info level if not specified.
//
// This function should be called by the application at startup if it wants
// to use the default logging configuration.
func ConfigureLogging() {
	ConfigureLoggingLevel(os.Getenv("LIVEPERS_LOG_LEVEL"))
}

// ConfigureLoggingLevel is ConfigureLogging with an explicit level name
// (DEBUG, INFO, WARN or ERROR), e.g. taken from Config.LogLevel.
func ConfigureLoggingLevel(lvl string) {
	logLevel.Set(parseLevel(lvl))

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel sets the logging level for the logger configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

func parseLevel(lvl string) slog.Level {
	switch lvl {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "warn":
		return slog.LevelWarn
	case "ERROR", "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
