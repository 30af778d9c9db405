package migration

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// GooseAdapter routes goose output through zerolog.
type GooseAdapter struct {
	logger zerolog.Logger
}

func NewGooseAdapter(logger zerolog.Logger) *GooseAdapter {
	return &GooseAdapter{
		logger: logger.With().Str("component", "goose").Logger(),
	}
}

// Printf logs migration progress at info level.
func (a *GooseAdapter) Printf(format string, v ...interface{}) {
	a.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level without exiting; RunMigrations reports the
// failure to its caller.
func (a *GooseAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
