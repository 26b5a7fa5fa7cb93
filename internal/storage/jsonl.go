package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"liquidityflow/internal/events"
)

// JsonlWriter appends records to a JSONL file.
type JsonlWriter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlWriter(path string) *JsonlWriter {
	return &JsonlWriter{path: path}
}

func (w *JsonlWriter) Path() string {
	return w.path
}

// Append writes each record as one JSON line.
func (w *JsonlWriter) Append(records ...any) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// EventLog is an events.Sink that appends envelopes to a JSONL file. Write
// failures are logged and dropped.
type EventLog struct {
	writer *JsonlWriter
	logger *zap.Logger
}

func NewEventLog(path string, logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{writer: NewJsonlWriter(path), logger: logger}
}

func (l *EventLog) Record(env events.Envelope) {
	if err := l.writer.Append(env); err != nil {
		l.logger.Warn("append event", zap.String("id", env.ID), zap.String("path", l.writer.Path()), zap.Error(err))
	}
}
