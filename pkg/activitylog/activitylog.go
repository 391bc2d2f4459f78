package activitylog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTail is how many lines the dashboard shows.
const DefaultTail = 50

// Log is the append-only, human-readable activity file. Every entry is
// "<ANSI C timestamp> - <message>". The file is opened and closed per entry.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

func (l *Log) Path() string {
	return l.path
}

// Write appends one entry. Failures are reported through logrus only; an
// unwritable activity file must not abort a cycle.
func (l *Log) Write(message string) {
	if err := l.append(message); err != nil {
		logrus.WithFields(logrus.Fields{"path": l.path}).Errorf("activity log write failed: %v", err)
	}
	logrus.WithField("activity", true).Info(message)
}

func (l *Log) Writef(format string, args ...any) {
	l.Write(fmt.Sprintf(format, args...))
}

func (l *Log) append(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s - %s\n", l.now().Format(time.ANSIC), message)
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Tail returns the last n lines of the file, oldest first. A missing file
// yields os.ErrNotExist so callers can render their own placeholder.
func (l *Log) Tail(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTail
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, errors.Wrap(err, "open activity log")
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(ring) == n {
			ring = append(ring[1:], line)
			continue
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read activity log")
	}
	return ring, nil
}
