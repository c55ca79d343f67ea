package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. Components derive entries from it with
// Component.
var Log = logrus.New()

type LogOptions struct {
	Level string
	JSON  bool
	// File additionally receives every line, rotated by size
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// InitLogger sets the level, format and outputs of Log.
func InitLogger(opts LogOptions) {
	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}
	Log.SetOutput(out)

	if opts.JSON {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		Log.WithField("level", opts.Level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
}

// Component returns a logger entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
