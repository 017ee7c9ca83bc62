package worker

import (
	"log/slog"
	"os"
	"strings"

	"legalmind/internal/logging"
)

// LEGALMIND_WORKER_DEBUG=1 logs scheduling decisions at info level, so they show
// without lowering the global log level.
var workerDebugEnabled = strings.EqualFold(os.Getenv("LEGALMIND_WORKER_DEBUG"), "1")

func debugLogger() *slog.Logger {
	return logging.With("component", "worker")
}

func debugLog(msg string, kv ...any) {
	if workerDebugEnabled {
		debugLogger().Info(msg, kv...)
	}
}
