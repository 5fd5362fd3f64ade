package gpu

import (
	"log/slog"

	"github.com/gogpu/nbody"
)

// slogger returns the package logger.
// All logging in internal/gpu goes through this function so that
// nbody.SetLogger takes effect immediately.
func slogger() *slog.Logger { return nbody.Logger().With("component", "gpu") }
