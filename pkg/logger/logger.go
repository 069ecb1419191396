package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so components can carry structured fields
// (job_id, testimony_id, stage) through the pipeline.
type Logger struct {
	*logrus.Entry
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// New builds a logger for the given level and format.
// Format "text" gives a console-friendly output, anything else is JSON.
func New(level, format string) *Logger {
	return NewWithOutput(level, format, os.Stdout)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(level, format string, out io.Writer) *Logger {
	base := logrus.New()

	if strings.EqualFold(format, "text") {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(out)
	base.SetLevel(ParseLevel(level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetDefault replaces the process-wide logger returned by Default.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLog = l
}

// Default returns the process-wide logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLog == nil {
			defaultLog = New(os.Getenv("LOG_LEVEL"), "json")
		}
	})
	return defaultLog
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return NewWithOutput("error", "json", io.Discard)
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return Default()
	}
	return l
}

// With returns a derived logger carrying the given fields.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields)}
}

// WithComponent tags every line with the component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":    reqID,
		"method":    r.Method,
		"path":      r.URL.Path,
		"remote_ip": r.RemoteAddr,
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
