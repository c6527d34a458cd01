package logflags

import (
	"errors"
	"io"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var experiment = false
var remote = false
var dbgWire = false

var logOut io.Writer

// SetOutput sets where all loggers created by this package write to.
func SetOutput(w io.Writer) {
	logOut = w
}

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	return logger
}

// Experiment returns true if the experiment package should log.
func Experiment() bool {
	return experiment
}

// ExperimentLogger returns a logger for the experiment control loop.
func ExperimentLogger() *logrus.Entry {
	return makeLogger(experiment, logrus.Fields{"layer": "experiment"})
}

// Remote returns true if remote syscall execution should be logged.
func Remote() bool {
	return remote
}

// RemoteLogger returns a logger for the remote syscall channel.
func RemoteLogger() *logrus.Entry {
	return makeLogger(remote, logrus.Fields{"layer": "remote"})
}

// DbgWire returns true if the debugger protocol adapter should log every
// request and reply it moves.
func DbgWire() bool {
	return dbgWire
}

// DbgWireLogger returns a configured logger for the debugger protocol adapter.
func DbgWireLogger() *logrus.Entry {
	return makeLogger(dbgWire, logrus.Fields{"layer": "dbgwire"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "experiment"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "experiment":
			experiment = true
		case "remote":
			remote = true
		case "dbgwire":
			dbgWire = true
		}
	}
	return nil
}
