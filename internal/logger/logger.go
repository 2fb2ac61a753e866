// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init sets the global log level and console output. Later calls are no-ops.
func Init(appName, logLevel string) {
	once.Do(func() {
		initLogger(os.Stdout, appName, logLevel)
	})
}

func initLogger(out io.Writer, appName, logLevel string) {
	if err := setLogLevel(logLevel); err != nil {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		defer log.Warn().Err(err).Msg("Log level not recognised, defaulting to WARN")
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "02-01-2006 15:04:05.000",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%-6s", i))
		},
		FieldsExclude: []string{"applicationName"},
	}).With().Timestamp().Caller().Str("applicationName", appName).Logger()

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		parts := strings.Split(file, "/")
		return parts[len(parts)-1] + ":" + strconv.Itoa(line)
	}

	log.Info().Msg("Logger initialized!")
}

// setLogLevel maps a level name to the global zerolog level.
func setLogLevel(logLevel string) error {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "", "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "FATAL":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "DISABLED":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("incorrect log level - %s", logLevel)
	}
	return nil
}
