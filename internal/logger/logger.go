// Package logger provides structured JSON logging and metrics tracking for geop-sync.
//
// Log entries are written by zerolog. The logger supports multiple log levels
// (DEBUG, INFO, WARN, ERROR); every entry carries a timestamp and can include
// arbitrary structured fields, which are nested under "fields".
//
// Metrics tracking includes counters (incrementing values), gauges (point-in-time values),
// and timings (duration measurements) with automatic statistical aggregation.
//
// Example usage:
//
//	logger.Info("Sync cycle finished", logger.Fields{
//	    "added": 3,
//	    "range": "2025-03-24..2025-05-05",
//	})
//
//	logger.Error("Calendar operation failed", logger.Fields{
//	    "kind": "update",
//	    "key":  "UFS02@2025-03-25T08:40:00",
//	}, err)
//
//	logger.IncrCounter("sync.ops.add")
//	logger.RecordTiming("sync.cycle", duration)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel parses a level name case-insensitively. "warning" is accepted
// for LevelWarn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) zlevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger provides structured logging
type Logger struct {
	minLevel Level
	zl       zerolog.Logger
}

// Fields represents structured log fields
type Fields map[string]interface{}

// LogEntry is the JSON shape of a single log entry
type LogEntry struct {
	Timestamp string `json:"time"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
}

var defaultLogger *Logger

func init() {
	defaultLogger = New(LevelInfo, os.Stdout)
}

// New creates a new logger writing JSON lines to output.
// Messages below the minimum level will be discarded.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		minLevel: level,
		zl:       zerolog.New(output).Level(level.zlevel()).With().Timestamp().Logger(),
	}
}

// NewConsole creates a logger with human-readable output, for interactive use.
func NewConsole(level Level, output io.Writer) *Logger {
	w := zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	return &Logger{
		minLevel: level,
		zl:       zerolog.New(w).Level(level.zlevel()).With().Timestamp().Logger(),
	}
}

// SetDefault sets the default package-level logger used by the convenience functions
// (Debug, Info, Warn, Error). This allows centralizing logger configuration.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// log writes a structured log entry
func (l *Logger) log(level Level, message string, fields Fields, err error) {
	if !l.shouldLog(level) {
		return
	}

	ev := l.zl.WithLevel(level.zlevel())
	if len(fields) > 0 {
		ev = ev.Dict("fields", zerolog.Dict().Fields(map[string]interface{}(fields)))
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(message)
}

// shouldLog determines if a message should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	return level.zlevel() >= l.minLevel.zlevel()
}

// Debug logs a debug message with optional structured fields.
// Debug messages are typically used for detailed diagnostic information.
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields, nil)
}

// Info logs an informational message with optional structured fields.
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields, nil)
}

// Warn logs a warning message with optional structured fields.
// Warning messages indicate potential issues that don't prevent operation.
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields, nil)
}

// Error logs an error message with optional structured fields and an error object.
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(LevelError, message, fields, err)
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}

// Metrics tracks counters, gauges and timing aggregates for the sync loop.
// All operations are safe for concurrent use.
//
// Timings keep running aggregates rather than every sample, so a watch
// process can record one timing per cycle indefinitely.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]*TimingStats
}

// TimingStats aggregates the durations recorded under one name.
type TimingStats struct {
	Count int           `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Last  time.Duration `json:"last"`
}

// Average returns the mean duration, or zero with no samples.
func (t TimingStats) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// MetricsSnapshot is a point-in-time copy of a Metrics.
type MetricsSnapshot struct {
	Counters map[string]int64       `json:"counters"`
	Gauges   map[string]float64     `json:"gauges"`
	Timings  map[string]TimingStats `json:"timings"`
}

var defaultMetrics = NewMetrics()

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]*TimingStats),
	}
}

// IncrCounter adds one to a counter, creating it at 1.
func (m *Metrics) IncrCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// SetGauge overwrites a gauge.
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// RecordTiming folds one duration into the named aggregate.
func (m *Metrics) RecordTiming(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.timings[name]
	if !ok {
		st = &TimingStats{Min: d, Max: d}
		m.timings[name] = st
	}
	st.Count++
	st.Total += d
	st.Last = d
	if d < st.Min {
		st.Min = d
	}
	if d > st.Max {
		st.Max = d
	}
}

// Snapshot returns a deep copy of the current values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
		Timings:  make(map[string]TimingStats, len(m.timings)),
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range m.timings {
		snap.Timings[k] = *v
	}
	return snap
}

// Fields flattens the snapshot into log fields, e.g. "sync.ops.add" and
// "sync.cycle.avg_ms".
func (s MetricsSnapshot) Fields() Fields {
	f := make(Fields, len(s.Counters)+len(s.Gauges)+3*len(s.Timings))
	for k, v := range s.Counters {
		f[k] = v
	}
	for k, v := range s.Gauges {
		f[k] = v
	}
	for k, v := range s.Timings {
		f[k+".count"] = v.Count
		f[k+".avg_ms"] = v.Average().Milliseconds()
		f[k+".max_ms"] = v.Max.Milliseconds()
	}
	return f
}

// IncrCounter increments a counter on the default tracker.
func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

// SetGauge sets a gauge on the default tracker.
func SetGauge(name string, value float64) {
	defaultMetrics.SetGauge(name, value)
}

// RecordTiming records a timing on the default tracker.
func RecordTiming(name string, d time.Duration) {
	defaultMetrics.RecordTiming(name, d)
}

// GetMetricsSnapshot returns a snapshot of the default tracker.
func GetMetricsSnapshot() MetricsSnapshot {
	return defaultMetrics.Snapshot()
}

// LogMetrics writes the default tracker's values as one info entry.
func LogMetrics(message string) {
	Info(message, GetMetricsSnapshot().Fields())
}
