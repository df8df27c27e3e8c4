// Package log provides leveled logging with systemd sd-daemon style
// prefixes, in the style of ClusterCockpit's pkg/log: no timestamps by
// default (the process supervisor is expected to add them), with
// level filtering implemented by redirecting a level's writer to
// io.Discard rather than by branching in every call site.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	debugWriter io.Writer = os.Stderr
	infoWriter  io.Writer = os.Stderr
	warnWriter  io.Writer = os.Stderr
	errWriter   io.Writer = os.Stderr
)

var (
	debugLog = log.New(debugWriter, "<7>[DEBUG]   ", 0)
	infoLog  = log.New(infoWriter, "<6>[INFO]    ", 0)
	warnLog  = log.New(warnWriter, "<4>[WARNING] ", 0)
	errLog   = log.New(errWriter, "<3>[ERROR]   ", log.Lshortfile)
)

// SetLevel configures which levels are emitted. Levels below the given
// one are redirected to io.Discard. Valid values: "debug", "info",
// "warn", "err". Unknown values default to "info".
func SetLevel(level string) {
	debugWriter, infoWriter, warnWriter, errWriter = os.Stderr, os.Stderr, os.Stderr, os.Stderr

	switch level {
	case "err", "error":
		warnWriter = io.Discard
		fallthrough
	case "warn":
		infoWriter = io.Discard
		fallthrough
	case "info", "":
		debugWriter = io.Discard
	case "debug":
		// nothing discarded
	default:
		debugWriter = io.Discard
	}

	debugLog.SetOutput(debugWriter)
	infoLog.SetOutput(infoWriter)
	warnLog.SetOutput(warnWriter)
	errLog.SetOutput(errWriter)
}

func Debugf(format string, args ...interface{}) { debugLog.Output(2, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{})  { infoLog.Output(2, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...interface{})  { warnLog.Output(2, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{}) { errLog.Output(2, fmt.Sprintf(format, args...)) }
