package definition

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// DefaultLogger is the logger used when the embedding application does
// not provide its own. It keeps the teacher's exact method set
// (types.Logger) but backs it with logrus instead of the standard
// library's log.Logger, giving every line structured fields, and
// colorizes the severity prefix with fatih/color when stderr is a
// terminal.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger builds a DefaultLogger with the given structured
// fields (e.g. "node", "component") attached to every line it emits.
func NewDefaultLogger(fields logrus.Fields) *DefaultLogger {
	base := logrus.New()
	base.SetOutput(terminalWriter())
	base.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{
		entry: base.WithFields(fields),
		debug: false,
	}
}

// terminalWriter wraps os.Stderr with go-colorable on Windows so
// fatih/color escape sequences render; on other platforms os.Stderr
// already honors ANSI codes directly.
func terminalWriter() io.Writer {
	if runtime.GOOS == "windows" {
		return colorable.NewColorableStderr()
	}
	return os.Stderr
}

func severity(c *color.Color, label string) string {
	return c.Sprint(label)
}

var (
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgMagenta)
	fatalColor = color.New(color.FgRed, color.Bold)
)

func (l *DefaultLogger) Info(v ...interface{}) {
	l.entry.Info(severity(infoColor, "[INFO] "), fmt.Sprint(v...))
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Info(severity(infoColor, "[INFO] "), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.entry.Warn(severity(warnColor, "[WARN] "), fmt.Sprint(v...))
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warn(severity(warnColor, "[WARN] "), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.entry.Error(severity(errorColor, "[ERROR] "), fmt.Sprint(v...))
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Error(severity(errorColor, "[ERROR] "), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(severity(debugColor, "[DEBUG] "), fmt.Sprint(v...))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debug(severity(debugColor, "[DEBUG] "), fmt.Sprintf(format, v...))
	}
}

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Fatal(severity(fatalColor, "[FATAL] "), fmt.Sprint(v...))
}

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatal(severity(fatalColor, "[FATAL] "), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Panic(v ...interface{}) {
	l.entry.Panic(fmt.Sprint(v...))
}

func (l *DefaultLogger) Panicf(format string, v ...interface{}) {
	l.entry.Panicf(format, v...)
}
