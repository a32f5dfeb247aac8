package jobs

import (
	"io"
	"log/slog"
	"time"
)

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
