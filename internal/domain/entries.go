package domain

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DbContext is an opaque database or transaction handle passed through to providers and
// repositories.
type DbContext any

// LogLevel is the severity of an audit log entry.
type LogLevel int

const (
	LogVerbose LogLevel = iota
	LogDebug
	LogInformation
	LogWarning
	LogError
	LogFatal
)

var logLevelNames = []string{"Verbose", "Debug", "Information", "Warning", "Error", "Fatal"}

func (l LogLevel) String() string {
	if l < LogVerbose || l > LogFatal {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return logLevelNames[l]
}

// ParseLogLevel resolves a level name, ignoring case.
func ParseLogLevel(name string) (LogLevel, error) {
	for i, n := range logLevelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return LogLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown log level %q", ErrDomain, name)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LogLevelFromSlog maps a slog level onto the audit scale.
func LogLevelFromSlog(level slog.Level) LogLevel {
	switch {
	case level < slog.LevelDebug:
		return LogVerbose
	case level < slog.LevelInfo:
		return LogDebug
	case level < slog.LevelWarn:
		return LogInformation
	case level < slog.LevelError:
		return LogWarning
	case level < slog.LevelError+4:
		return LogError
	default:
		return LogFatal
	}
}

// Task is a follow-up action raised by a scripted function.
type Task struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Instruction  string            `json:"instruction"`
	Category     string            `json:"category,omitempty"`
	ScheduleDate time.Time         `json:"scheduleDate"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Created      time.Time         `json:"created"`
}

// NewTask creates a task with a fresh identifier.
func NewTask(name, instruction string, schedule time.Time) *Task {
	return &Task{
		ID:           uuid.Must(uuid.NewV6()),
		Name:         name,
		Instruction:  instruction,
		ScheduleDate: schedule,
		Created:      time.Now().UTC(),
	}
}

// LogEntry is an audit log record raised by a scripted function.
type LogEntry struct {
	ID      uuid.UUID `json:"id"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Comment string    `json:"comment,omitempty"`
	Owner   string    `json:"owner,omitempty"`
	Created time.Time `json:"created"`
}

// NewLogEntry creates a log entry with a fresh identifier.
func NewLogEntry(level LogLevel, message string) *LogEntry {
	return &LogEntry{
		ID:      uuid.Must(uuid.NewV6()),
		Level:   level,
		Message: message,
		Created: time.Now().UTC(),
	}
}
