package logutil

import (
	"io"

	"github.com/phuslu/log"
)

// New returns a console logger writing to w at the named level.
func New(w io.Writer, level string) *log.Logger {
	return &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer:         w,
			EndWithMessage: true,
		},
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
