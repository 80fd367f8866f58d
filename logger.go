package webx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"text/template"
	"time"
)

// Logger is the runtime's leveled logger, shared by the actor, the HTTP
// server, and the file watcher: a fixed level set, a text/template-rendered
// line format, a buffer pool, and a mutex guarding the shared Output
// writer since all three goroutines log concurrently.
type Logger struct {
	Output io.Writer

	// DebugLevel is the run mode's verbosity knob (CLI `--level 1..4`).
	// 1: errors and fatal only. 2: + warnings. 3: + info. 4: + per-request
	// resolver tracing. Every entry uses the same one-line format; the
	// module path and line appear whenever the caller supplies them.
	DebugLevel int

	template   *template.Template
	bufferPool *sync.Pool
	mutex      *sync.Mutex
}

// NewLogger returns a Logger writing to os.Stderr at debug level 1.
func NewLogger() *Logger {
	l := &Logger{
		Output:     os.Stderr,
		DebugLevel: 1,
		mutex:      &sync.Mutex{},
	}
	l.template = template.Must(template.New("logger").Parse(
		`{{.Time}} [{{.Level}}] {{.Message}}{{if .Module}} module={{.Module}}{{end}}{{if .Line}} line={{.Line}}{{end}}` + "\n",
	))
	l.bufferPool = &sync.Pool{New: func() interface{} { return &bytes.Buffer{} }}
	return l
}

type logEntry struct {
	Time    string
	Level   string
	Message string
	Module  string
	Line    int
}

func (l *Logger) write(level, module string, line int, message string) {
	buf := l.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer l.bufferPool.Put(buf)

	entry := logEntry{
		Time:    time.Now().Format("2006-01-02T15:04:05.000Z07:00"),
		Level:   level,
		Message: message,
		Module:  module,
		Line:    line,
	}
	if err := l.template.Execute(buf, entry); err != nil {
		fmt.Fprintf(l.Output, "%s [%s] %s\n", entry.Time, level, entry.Message)
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.Output.Write(buf.Bytes())
}

// jsonish renders fields deterministically (sorted keys) without pulling in
// encoding/json for what is, at most, a handful of scalar fields per call.
func jsonish(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	b.WriteByte('}')
	return b.String()
}

// The Debug family is the level-4 firehose: per-request resolver tracing
// (method, URL, matched pattern, bindings) and similar diagnostics.
func (l *Logger) Debug(message string) { l.guarded(4, "DEBUG", "", 0, message) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.guarded(4, "DEBUG", "", 0, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugj(fields map[string]interface{}) {
	l.guarded(4, "DEBUG", "", 0, jsonish(fields))
}

func (l *Logger) Info(message string) { l.guarded(3, "INFO", "", 0, message) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.guarded(3, "INFO", "", 0, fmt.Sprintf(format, args...))
}

func (l *Logger) Infoj(fields map[string]interface{}) { l.guarded(3, "INFO", "", 0, jsonish(fields)) }

func (l *Logger) Warn(module string, line int, message string) {
	l.guarded(2, "WARN", module, line, message)
}
func (l *Logger) Warnf(module string, line int, format string, args ...interface{}) {
	l.guarded(2, "WARN", module, line, fmt.Sprintf(format, args...))
}
func (l *Logger) Warnj(module string, line int, fields map[string]interface{}) {
	l.guarded(2, "WARN", module, line, jsonish(fields))
}

func (l *Logger) Error(module string, line int, message string) {
	l.write("ERROR", module, line, message)
}
func (l *Logger) Errorf(module string, line int, format string, args ...interface{}) {
	l.write("ERROR", module, line, fmt.Sprintf(format, args...))
}
func (l *Logger) Errorj(module string, line int, fields map[string]interface{}) {
	l.write("ERROR", module, line, jsonish(fields))
}

// The Fatal family logs and then terminates the process with exit code 1,
// so it is reserved for failures that have no more specific exit code to
// report.
func (l *Logger) Fatal(message string) {
	l.write("FATAL", "", 0, message)
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.write("FATAL", "", 0, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (l *Logger) Fatalj(fields map[string]interface{}) {
	l.write("FATAL", "", 0, jsonish(fields))
	os.Exit(1)
}

// guarded writes only if the logger's DebugLevel is at least min. ERROR
// always writes (request failures must be visible at every level) and
// FATAL writes then exits; both bypass this gate via direct write() calls
// above.
func (l *Logger) guarded(min int, level, module string, line int, message string) {
	if l.DebugLevel < min {
		return
	}
	l.write(level, module, line, message)
}
