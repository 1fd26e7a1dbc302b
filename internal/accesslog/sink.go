package accesslog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// timeLayout is the wall-clock format used for the {timestamp} placeholder.
const timeLayout = "2006-01-02 15:04:05"

var (
	// ErrClosed indicates an append was attempted after the sink was closed.
	ErrClosed = errors.New("access log sink closed")
)

// Entry is one request's worth of log data. It exists only for the duration
// of a single request and is serialized to one line on append.
type Entry struct {
	Timestamp time.Time
	IP        string
	Method    string
	Path      string
	Status    int
}

// Render substitutes the named placeholders {timestamp}, {ip}, {method},
// {path}, and {status} in format. Unknown placeholders are left verbatim.
func (e Entry) Render(format string) string {
	return strings.NewReplacer(
		"{timestamp}", e.Timestamp.Format(timeLayout),
		"{ip}", e.IP,
		"{method}", e.Method,
		"{path}", e.Path,
		"{status}", strconv.Itoa(e.Status),
	).Replace(format)
}

// Options configures a Sink.
type Options struct {
	Format   string
	Rotate   bool
	MaxSize  int64
	MaxFiles int
}

// Sink appends formatted request entries to a log file, rotating it by size
// when enabled. It is the one shared mutable resource in the server: a single
// mutex serializes append+rotate across all request goroutines so lines never
// interleave and rotation decisions stay consistent.
type Sink struct {
	path     string
	format   string
	rotate   bool
	maxSize  int64
	maxFiles int

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// Open creates the sink for the given log file path, creating the parent
// directory if needed and appending to an existing file.
func Open(path string, opts Options) (*Sink, error) {
	s := &Sink{
		path:     path,
		format:   opts.Format,
		rotate:   opts.Rotate,
		maxSize:  opts.MaxSize,
		maxFiles: opts.MaxFiles,
	}

	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) open() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	s.file = file
	s.size = info.Size()
	return nil
}

// Append renders one entry and writes it, with a trailing newline, as a
// single line. When rotation is enabled and the write would push the active
// file past the size limit, the file is rotated first, so the active file
// never grows beyond the limit by more than one entry.
func (s *Sink) Append(e Entry) error {
	line := []byte(e.Render(s.format) + "\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.rotate && s.size > 0 && s.size+int64(len(line)) > s.maxSize {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(line)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

// rotateLocked archives the active file as <path>.1, shifting existing
// backups up by one and discarding any beyond maxFiles. Callers hold s.mu.
func (s *Sink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file for rotation: %w", err)
	}

	if s.maxFiles == 0 {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("discard log file: %w", err)
		}
	} else {
		_ = os.Remove(s.backupName(s.maxFiles))
		for i := s.maxFiles - 1; i >= 1; i-- {
			if _, err := os.Stat(s.backupName(i)); err == nil {
				if err := os.Rename(s.backupName(i), s.backupName(i+1)); err != nil {
					return fmt.Errorf("shift log backup %d: %w", i, err)
				}
			}
		}
		if err := os.Rename(s.path, s.backupName(1)); err != nil {
			return fmt.Errorf("archive log file: %w", err)
		}
	}

	return s.open()
}

func (s *Sink) backupName(i int) string {
	return fmt.Sprintf("%s.%d", s.path, i)
}

// Close flushes and closes the underlying file. Appends after Close fail
// with ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}
