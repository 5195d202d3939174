package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configureLogger creates a logger with the level from --log-level, the
// config file or --verbose, in that order. The default level is Panic, which
// keeps normal runs silent. --log-file takes precedence over configFile.
//
// The returned closer releases the log file, if one was opened.
func configureLogger(cmd *cobra.Command, configLevel, configFile string) (*logrus.Logger, func(), error) {
	logLevel := logrus.PanicLevel

	levelStr, _ := cmd.Flags().GetString("log-level")
	if levelStr == "" {
		levelStr = configLevel
	}
	if levelStr != "" {
		switch levelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
		}
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	closer := func() {}
	if path := logFilePath(cmd, configFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = func() { _ = f.Close() }
	}

	return logger, closer, nil
}

func logFilePath(cmd *cobra.Command, configFile string) string {
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		return path
	}
	return configFile
}

// quietOutput keeps log lines off a full-screen terminal UI: logs go to the
// log file when one is set, otherwise nowhere.
func quietOutput(cmd *cobra.Command, configFile string, logger *logrus.Logger) {
	if logFilePath(cmd, configFile) == "" {
		logger.SetOutput(io.Discard)
	}
}
