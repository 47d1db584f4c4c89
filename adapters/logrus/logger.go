// Package exportlogrus backs export.Logger with logrus.
package exportlogrus

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-tableview/export"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a logrus logger writing to out. An empty level means info and an
// empty format means text.
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	log.Out = out

	parsed := logrus.InfoLevel
	if strings.TrimSpace(level) != "" {
		var err error
		parsed, err = logrus.ParseLevel(strings.TrimSpace(level))
		if err != nil {
			return nil, export.NewError(export.KindValidation, "invalid log level "+level, err)
		}
	}
	log.Level = parsed

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	case FormatJSON:
		log.Formatter = &logrus.JSONFormatter{}
	default:
		return nil, export.NewError(export.KindValidation, "invalid log format "+format, nil)
	}
	return log, nil
}

// Logger adapts a logrus entry to export.Logger.
type Logger struct {
	Entry *logrus.Entry
}

var _ export.Logger = Logger{}

// Wrap returns an export.Logger tagged with a component field.
func Wrap(log *logrus.Logger, component string) Logger {
	if log == nil {
		log = logrus.New()
		log.Out = io.Discard
	}
	entry := logrus.NewEntry(log)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return Logger{Entry: entry}
}

func (l Logger) Debugf(format string, args ...any) {
	if l.Entry != nil {
		l.Entry.Debugf(format, args...)
	}
}

func (l Logger) Infof(format string, args ...any) {
	if l.Entry != nil {
		l.Entry.Infof(format, args...)
	}
}

func (l Logger) Errorf(format string, args ...any) {
	if l.Entry != nil {
		l.Entry.Errorf(format, args...)
	}
}
