package observability

import (
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/rs/zerolog"
)

// InitLogger returns the process logger tagged with the application name.
func InitLogger(app string) zerolog.Logger {
	return logs.Logger().With().Str("app", app).Logger()
}
