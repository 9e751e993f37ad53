// Package supervisor runs the game process, relays its output as events and
// keeps a bounded log of it that is written to a crash log when the process
// exits with a non-zero code.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mclaunch/internal/event"
	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
	"mclaunch/internal/lock"
)

const (
	DefaultMaxLines = 5000
	timestampFormat = "2006-01-02 15:04:05"
	uploadTimeout   = 2 * time.Minute
)

// CrashUploader receives every crash log written.
type CrashUploader interface {
	UploadCrashLog(ctx context.Context, path string) error
}

type Supervisor struct {
	root     string
	sink     event.Sink
	maxLines int
	uploader CrashUploader
	now      func() time.Time

	mu      sync.Mutex
	running bool
	lines   []string
}

type Option func(*Supervisor)

func WithMaxLines(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxLines = n
		}
	}
}

func WithUploader(u CrashUploader) Option {
	return func(s *Supervisor) { s.uploader = u }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func New(root string, sink event.Sink, opts ...Option) *Supervisor {
	s := &Supervisor{
		root:     root,
		sink:     event.Serialize(sink),
		maxLines: DefaultMaxLines,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle is a running launch.
type Handle struct {
	pid      int
	cancel   context.CancelFunc
	done     chan struct{}
	code     int
	crashLog string
}

func (h *Handle) Pid() int { return h.pid }

// Done is closed once the process has exited and its close event was sent.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits and returns its exit code.
func (h *Handle) Wait() int {
	<-h.done
	return h.code
}

// CrashLog returns the crash log written for this launch, if any. It is
// only meaningful after Done is closed.
func (h *Handle) CrashLog() string {
	<-h.done
	return h.crashLog
}

// Stop kills the process.
func (h *Handle) Stop() { h.cancel() }

// Running reports whether a launch is in progress.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Launch starts argv[0] with the remaining arguments in dir. A second call
// while a launch is in progress fails with fault.ErrAlreadyRunning and
// spawns nothing. A process that cannot be started is reported as an error
// event followed by close(1).
func (s *Supervisor) Launch(ctx context.Context, argv []string, dir string) (*Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command line", fault.ErrProcess)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fault.ErrAlreadyRunning
	}
	s.running = true
	s.lines = s.lines[:0]
	s.mu.Unlock()

	release, err := lock.Acquire(layout.LaunchLockPath(s.root))
	if err != nil {
		s.setRunning(false)
		if errors.Is(err, lock.ErrHeld) {
			return nil, fmt.Errorf("%w: %w", fault.ErrAlreadyRunning, err)
		}
		return nil, fmt.Errorf("failed to acquire launch lock: %w", err)
	}

	h, err := s.start(ctx, argv, dir, release)
	if err != nil {
		if rerr := release(); rerr != nil {
			slog.Warn("Failed to release launch lock", "error", rerr)
		}
		s.setRunning(false)
		s.sink.Emit(event.Event{Kind: event.Error, Message: err.Error()})
		s.sink.Emit(event.Event{Kind: event.Close, Code: 1})
		return nil, err
	}
	return h, nil
}

func (s *Supervisor) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Supervisor) start(ctx context.Context, argv []string, dir string, release func() error) (*Handle, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: failed to create game directory: %w", fault.ErrProcess, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", fault.ErrProcess, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", fault.ErrProcess, err)
	}

	s.sink.Emit(event.Event{Kind: event.Debug, Message: "Launching " + strings.Join(redact(argv), " ")})
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to start %s: %w", fault.ErrProcess, argv[0], err)
	}
	slog.Info("Game process started", "pid", cmd.Process.Pid, "dir", dir)

	h := &Handle{pid: cmd.Process.Pid, cancel: cancel, done: make(chan struct{})}

	var readers sync.WaitGroup
	readers.Add(2)
	go s.relay(&readers, stdout, event.Data, "")
	go s.relay(&readers, stderr, event.Error, "[ERROR] ")

	go func() {
		defer close(h.done)
		defer cancel()

		readers.Wait()
		err := cmd.Wait()
		h.code = exitCode(cmd, err)
		slog.Info("Game process exited", "pid", h.pid, "code", h.code)

		s.mu.Lock()
		lines := s.lines
		s.lines = nil
		s.mu.Unlock()

		if h.code != 0 && len(lines) > 0 {
			path, werr := s.writeCrashLog(lines)
			if werr != nil {
				slog.Error("Failed to write crash log", "error", werr)
			} else {
				h.crashLog = path
				slog.Warn("Crash log written", "path", path)
			}
		}

		if rerr := release(); rerr != nil {
			slog.Warn("Failed to release launch lock", "error", rerr)
		}
		s.setRunning(false)
		s.sink.Emit(event.Event{Kind: event.Close, Code: h.code})

		if h.crashLog != "" && s.uploader != nil {
			uctx, ucancel := context.WithTimeout(context.Background(), uploadTimeout)
			if uerr := s.uploader.UploadCrashLog(uctx, h.crashLog); uerr != nil {
				slog.Error("Failed to upload crash log", "path", h.crashLog, "error", uerr)
			}
			ucancel()
		}
	}()

	return h, nil
}

// relay forwards every line of r as an event and appends it to the log
// buffer with a timestamp and prefix.
func (s *Supervisor) relay(wg *sync.WaitGroup, r io.Reader, kind event.Kind, prefix string) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		s.sink.Emit(event.Event{Kind: kind, Message: line})
		s.record(fmt.Sprintf("[%s] %s%s", s.now().Format(timestampFormat), prefix, line))
	}
	if err := sc.Err(); err != nil {
		slog.Debug("Output stream closed", "error", err)
		io.Copy(io.Discard, r)
	}
}

func (s *Supervisor) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) >= s.maxLines {
		copy(s.lines, s.lines[1:])
		s.lines = s.lines[:len(s.lines)-1]
	}
	s.lines = append(s.lines, line)
}

func (s *Supervisor) writeCrashLog(lines []string) (string, error) {
	path := layout.CrashLogPath(s.root, s.now())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

// redact hides the access token in logged command lines.
func redact(argv []string) []string {
	out := make([]string, len(argv))
	copy(out, argv)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--accessToken" {
			out[i+1] = "********"
		}
	}
	return out
}
