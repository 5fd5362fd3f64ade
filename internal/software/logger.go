package software

import (
	"log/slog"

	"github.com/gogpu/nbody"
)

func slogger() *slog.Logger { return nbody.Logger().With("component", "software") }
