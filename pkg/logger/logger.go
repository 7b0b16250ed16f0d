package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"compress-service/pkg/config"
)

// Logger 日志服务，封装 logrus
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = &Logger{entry: logrus.StandardLogger()}
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if cfg == nil {
		return &Logger{entry: l}
	}

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Log.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	out := &Logger{entry: l}
	if strings.EqualFold(cfg.Log.Output, "file") && cfg.Log.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.Filename), 0o755); err == nil {
			f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				out.file = f
				l.SetOutput(io.MultiWriter(os.Stdout, f))
			} else {
				fmt.Fprintf(os.Stderr, "open log file %s: %v\n", cfg.Log.Filename, err)
			}
		}
	}
	return out
}

// SetGlobalLogger 替换全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// SetOutput redirects the global logger, mostly useful in tests and the CLI.
func SetOutput(w io.Writer) {
	current().entry.SetOutput(w)
}

// SetLevel changes the global level ("debug", "info", ...).
func SetLevel(level string) {
	if lv, err := logrus.ParseLevel(level); err == nil {
		current().entry.SetLevel(lv)
	}
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l != nil && l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(current().entry)
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return current().entry.WithFields(logrus.Fields(fields))
}

func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }
func Info(msg string, fields ...map[string]interface{})  { withFields(fields).Info(msg) }
func Warn(msg string, fields ...map[string]interface{})  { withFields(fields).Warn(msg) }
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

func Debugf(format string, args ...interface{}) { current().entry.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().entry.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().entry.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().entry.Errorf(format, args...) }

// Fatal 记录日志后退出进程
func Fatal(msg string, fields ...map[string]interface{}) { withFields(fields).Fatal(msg) }
