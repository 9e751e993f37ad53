// Package lock guards the launcher root against a second process running
// the same pipeline. The lock file records the owner's pid; a lock whose
// owner no longer exists is stale and reclaimed.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	ps "github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"
)

var ErrHeld = errors.New("lock held by another process")

const (
	maxAttempts = 3
	writeGrace  = 5 * time.Second
)

type Entry struct {
	Pid       int    `yaml:"pid"`
	Command   string `yaml:"command,omitempty"`
	StartedAt string `yaml:"started_at"`
}

func readLock(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// createLock writes entry to path only if no lock file exists yet.
func createLock(path string, entry *Entry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// fresh reports whether path was modified within writeGrace, which is how
// long an unreadable lock file is assumed to be mid-write by its owner.
func fresh(path string) bool {
	info, err := os.Stat(path)
	return err == nil && time.Since(info.ModTime()) < writeGrace
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := ps.FindProcess(pid)
	if err != nil {
		// Process table unreadable; assume the owner is alive.
		return true
	}
	return p != nil
}

// Acquire creates the lock file at lockPath exclusively. An existing lock
// whose owner is gone is reclaimed. Returns a release function which should
// be called (deferred) when work is done.
func Acquire(lockPath string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, err
	}

	pid := os.Getpid()
	entry := &Entry{
		Pid:       pid,
		Command:   filepath.Base(os.Args[0]),
		StartedAt: time.Now().Format(time.RFC3339),
	}

	for attempt := 0; ; attempt++ {
		err := createLock(lockPath, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			return nil, fmt.Errorf("%w: could not reclaim %s", ErrHeld, lockPath)
		}

		existing, rerr := readLock(lockPath)
		switch {
		case rerr == nil && existing == nil:
			// Released between our create and read.
			continue
		case rerr != nil || existing.Pid <= 0:
			if fresh(lockPath) {
				return nil, fmt.Errorf("%w: lock file is being written", ErrHeld)
			}
		case isProcessAlive(existing.Pid):
			return nil, fmt.Errorf("%w: already locked by pid %d (started %s)", ErrHeld, existing.Pid, existing.StartedAt)
		}

		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	release := func() error {
		existing, err := readLock(lockPath)
		if err == nil && existing != nil && existing.Pid != pid {
			return nil
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	return release, nil
}
