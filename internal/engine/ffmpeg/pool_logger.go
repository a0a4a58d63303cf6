package ffmpeg

import (
	"github.com/panjf2000/ants/v2"

	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

// antsLogger routes worker pool diagnostics to the service logger.
type antsLogger struct {
	log logger.Logger
}

var _ ants.Logger = antsLogger{}

func newAntsLogger(log logger.Logger) ants.Logger {
	return antsLogger{log: log}
}

func (l antsLogger) Printf(format string, args ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.Warnf("relay pool: "+format, args...)
}
