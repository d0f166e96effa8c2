package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// DailyFileWriter is an io.Writer that writes to a log file named
// {service}_{date}.log and rotates to a new file when the date changes.
// It is safe for concurrent use.
type DailyFileWriter struct {
	service  string
	dir      string
	mu       sync.RWMutex
	file     *os.File
	currDate string
	closed   int32
}

// NewDailyFileWriter creates a DailyFileWriter for the given service writing
// into dir, and opens the file for the current date.
//
// Parameters:
//   - service: Service name used as the log file name prefix
//   - dir: Directory the log files are written into
//
// Returns:
//   - A ready DailyFileWriter, or an error if the initial file cannot be opened
func NewDailyFileWriter(service string, dir string) (*DailyFileWriter, error) {
	w := &DailyFileWriter{
		service: service,
		dir:     dir,
	}

	if err := w.rotate(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write implements io.Writer. It rotates to a new file when the date changes
// and writes p to the current log file.
//
// Returns:
//   - The number of bytes written and an error if the writer is closed or write fails
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	if atomic.LoadInt32(&w.closed) == 1 {
		return 0, fmt.Errorf("writer is closed")
	}

	w.mu.RLock()
	needsRotation := w.needsRotation()
	w.mu.RUnlock()

	if needsRotation {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotation failed: %w", err)
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.file == nil {
		return 0, fmt.Errorf("log file is not open")
	}

	return w.file.Write(p)
}

// Close closes the current log file. Subsequent writes fail. Safe to call
// multiple times.
//
// Returns:
//   - An error if closing the file fails
func (w *DailyFileWriter) Close() error {
	if !atomic.CompareAndSwapInt32(&w.closed, 0, 1) {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// CurrentLogFile returns the full path of the log file currently being written
// to, or an empty string if no file is open.
//
// Returns:
//   - The path to the current log file, or "" if none
func (w *DailyFileWriter) CurrentLogFile() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.file == nil {
		return ""
	}

	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.service, w.currDate))
}

func (w *DailyFileWriter) needsRotation() bool {
	if w.file == nil {
		return true
	}

	return time.Now().Format("2006-01-02") != w.currDate
}

func (w *DailyFileWriter) rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.needsRotation() {
		return nil
	}

	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close previous log file: %w", err)
		}
	}

	date := time.Now().Format("2006-01-02")
	filename := filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.service, date))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", filename, err)
	}

	w.file = file
	w.currDate = date
	return nil
}
