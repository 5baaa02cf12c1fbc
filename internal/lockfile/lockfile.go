// Package lockfile guards a wren state directory so that only one server
// process uses a local checkpoint database or WhatsApp device store at a time.
//
// The lock is an flock(2) on a file inside the directory; the kernel drops it
// when the process exits, even on a crash.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is created inside the state directory.
const LockFileName = "wren.lock"

// Owner describes the process holding a lock, as recorded in the lock file.
type Owner struct {
	PID     int
	Started time.Time
	Purpose string
}

func (o Owner) String() string {
	s := fmt.Sprintf("pid %d", o.PID)
	if o.Purpose != "" {
		s += " (" + o.Purpose + ")"
	}
	if !o.Started.IsZero() {
		s += ", started " + o.Started.Format(time.RFC3339)
	}
	return s
}

func (o Owner) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", o.PID)
	fmt.Fprintf(&b, "started=%s\n", o.Started.UTC().Format(time.RFC3339))
	if o.Purpose != "" {
		fmt.Fprintf(&b, "purpose=%s\n", o.Purpose)
	}
	return b.String()
}

func parseOwner(content string) (Owner, bool) {
	var o Owner
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(val)
		case "started":
			o.Started, _ = time.Parse(time.RFC3339, val)
		case "purpose":
			o.Purpose = val
		}
	}
	return o, o.PID > 0
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock on stateDir, creating the directory if needed.
// purpose is recorded for the error shown to a second process.
func Acquire(stateDir, purpose string) (*Lock, error) {
	path := filepath.Join(stateDir, LockFileName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: create state directory %s: %w", stateDir, err)
	}

	// Do not truncate before the lock is held or a live owner's record is lost.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lerr := &LockError{Path: path, Cause: err}
		if data, rerr := os.ReadFile(path); rerr == nil {
			if o, ok := parseOwner(string(data)); ok {
				lerr.Owner = &o
				lerr.OwnerAlive = processAlive(o.PID)
			}
		}
		slog.Error("Lockfile.Acquire: state directory already in use", "path", path, "error", lerr.Cause)
		return nil, lerr
	}

	owner := Owner{PID: os.Getpid(), Started: time.Now(), Purpose: purpose}
	if err := writeOwner(file, owner); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("lockfile: record owner in %s: %w", path, err)
	}

	slog.Info("Lockfile.Acquire: state directory locked", "path", path, "pid", owner.PID)
	return &Lock{file: file, path: path}, nil
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(o.encode()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("Lockfile.writeOwner: sync failed", "error", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the file. Calling it twice is harmless.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove first so a waiting process never sees our stale record.
	rmErr := os.Remove(l.path)
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile.Release: unlock failed", "path", l.path, "error", err)
	}
	closeErr := l.file.Close()
	l.file = nil
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("lockfile: remove %s: %w", l.path, rmErr)
	}
	if closeErr != nil {
		return fmt.Errorf("lockfile: close %s: %w", l.path, closeErr)
	}
	slog.Info("Lockfile.Release: state directory unlocked", "path", l.path)
	return nil
}

// LockError is returned when another process holds the lock.
type LockError struct {
	Path       string
	Owner      *Owner
	OwnerAlive bool
	Cause      error
}

func (e *LockError) Error() string {
	msg := "another wren process is using this state directory (lock " + e.Path + ")"
	if e.Owner == nil {
		return msg
	}
	msg += ": held by " + e.Owner.String()
	if !e.OwnerAlive {
		msg += "; that process is gone, remove the lock file if the problem persists"
	}
	return msg
}

func (e *LockError) Unwrap() error { return e.Cause }

// processAlive sends signal 0 to pid.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
