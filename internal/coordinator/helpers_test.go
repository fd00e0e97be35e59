package coordinator

import (
	"github.com/rs/zerolog"

	"synckit/internal/obs/log"
)

func testLogger() *log.Logger {
	return log.NewConsole(zerolog.Disabled)
}
