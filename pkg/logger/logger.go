// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Logger writes printf-style lines tagged with a component prefix.
type Logger struct {
	prefix string
}

var (
	mu           sync.RWMutex
	baseLogger   = log.New(io.MultiWriter(os.Stdout, defaultTail), "", log.LstdFlags)
	baseWriter   io.Writer = io.MultiWriter(os.Stdout, defaultTail)
	logFile      *os.File
	debugEnabled = os.Getenv("DEBUG") != ""

	defaultTail = NewTail(500)
)

// Init adds a log file next to stdout. Calling it again replaces the file.
// The DEBUG env var enables debug output at startup.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	setWriterLocked(io.MultiWriter(os.Stdout, f, defaultTail))
	if os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
	return nil
}

func setWriterLocked(w io.Writer) {
	baseWriter = w
	baseLogger = log.New(w, "", log.LstdFlags)
}

// SetOutput redirects all loggers to w (plus the in-memory tail). Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	setWriterLocked(io.MultiWriter(w, defaultTail))
	mu.Unlock()
}

// Writer returns the shared destination, for HTTP access logs.
func Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		mu.RLock()
		w := baseWriter
		mu.RUnlock()
		return w.Write(p)
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Close cleans up the log file (call on shutdown)
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
		setWriterLocked(io.MultiWriter(os.Stdout, defaultTail))
	}
}

// EnableDebug dynamically turns debug logging on/off
func EnableDebug(on bool) {
	mu.Lock()
	debugEnabled = on
	mu.Unlock()
}

// IsDebug returns current debug state
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugEnabled
}

func New(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

func (l *Logger) output(level, formatted string) {
	mu.RLock()
	lg := baseLogger
	mu.RUnlock()
	lg.Printf("[%s] %s: %s", l.prefix, level, formatted)
}

func (l *Logger) Info(fmtstr string, v ...any) {
	l.output("INFO", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Warn(fmtstr string, v ...any) {
	l.output("WARN", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Error(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	if _, file, line, ok := runtime.Caller(1); ok {
		formatted = fmt.Sprintf("(%s:%d) %s", filepath.Base(file), line, formatted)
	}
	l.output("ERROR", formatted)
}

// Fatal logs and panics; service.Start recovers the panic and shuts the app down.
func (l *Logger) Fatal(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	if _, file, line, ok := runtime.Caller(1); ok {
		l.output("FATAL", fmt.Sprintf("(%s:%d) %s", filepath.Base(file), line, formatted))
	} else {
		l.output("FATAL", formatted)
	}
	panic(formatted)
}

func (l *Logger) Debug(fmtstr string, v ...any) {
	if !IsDebug() {
		return
	}
	l.output("DEBUG", fmt.Sprintf(fmtstr, v...))
}
