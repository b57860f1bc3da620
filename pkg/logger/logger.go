package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the process-wide logger.
type Options struct {
	Level      string
	File       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
}

func Init(opts Options) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	writers := []io.Writer{os.Stdout}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			logrus.WithError(err).Warn("cannot create log directory, logging to stdout only")
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSize,
				MaxAge:     opts.MaxAge,
				MaxBackups: opts.MaxBackups,
				LocalTime:  true,
				Compress:   true,
			})
		}
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.WithField("level", level.String()).Info("logger initialized")
}

// PartialConsistency records a side effect that failed after the primary
// write committed. The database is consistent but an external copy (CDN,
// search index, cache) may now disagree with it.
func PartialConsistency(op string, err error, fields logrus.Fields) {
	entry := logrus.WithFields(fields).WithFields(logrus.Fields{
		"op":          op,
		"consistency": "partial",
	})
	entry.WithError(err).Warn("side effect failed after commit")
}
