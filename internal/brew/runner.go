package brew

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single install when the caller does not set one.
const DefaultTimeout = 5 * time.Minute

// waitDelay is how long Wait keeps draining output after the process group is killed.
const waitDelay = 5 * time.Second

// Executor runs one brew command and classifies the result.
type Executor interface {
	Run(ctx context.Context, cmd Command) Result
}

// Runner executes brew as an external process.
type Runner struct {
	// BrewPath is the brew binary, "brew" to resolve from PATH.
	BrewPath string
	// ProfileMode enables the permission-denied classification.
	ProfileMode bool
	// Out receives streamed, decorated output lines.
	Out io.Writer
	// Env is appended to the inherited environment.
	Env []string

	log zerolog.Logger
}

// NewRunner creates a Runner for the brew binary at brewPath.
// Pass zerolog.Nop() to disable the run log.
func NewRunner(brewPath string, log zerolog.Logger) *Runner {
	if brewPath == "" {
		brewPath = "brew"
	}
	return &Runner{
		BrewPath: brewPath,
		Out:      os.Stdout,
		log:      log,
	}
}

// Run executes cmd, streaming output when requested, and classifies the outcome.
// Run never returns an error: every failure is folded into the Result.
func (r *Runner) Run(ctx context.Context, cmd Command) Result {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.log.Info().
		Str("command", r.BrewPath).
		Strs("args", cmd.Args).
		Str("item", cmd.Item).
		Dur("timeout", timeout).
		Msg("Executing command")

	var (
		mu       sync.Mutex
		combined bytes.Buffer
	)
	onLine := func(line string) {
		mu.Lock()
		combined.WriteString(line)
		combined.WriteByte('\n')
		mu.Unlock()

		r.log.Debug().Str("item", cmd.Item).Str("line", line).Msg("output")
		if cmd.Stream && r.Out != nil {
			mu.Lock()
			fmt.Fprintln(r.Out, decorateLine(line))
			mu.Unlock()
		}
	}
	stdout := newLineWriter(onLine)
	stderr := newLineWriter(onLine)

	c := exec.CommandContext(runCtx, r.BrewPath, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.Stdin = nil
	c.Env = append(os.Environ(), r.Env...)
	// brew forks curl/git children; kill the whole group on timeout so the
	// pipes close and Wait returns.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
	c.WaitDelay = waitDelay

	start := time.Now()
	err := c.Run()
	stdout.Flush()
	stderr.Flush()

	res := Result{
		Output:   combined.String(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		res.Status = StatusSucceeded
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = StatusFailed
		res.Reason = ReasonTimeout
		res.Message = fmt.Sprintf("timed out after %s", timeout)
		res.ExitCode = -1
	case ctx.Err() != nil:
		res.Status = StatusFailed
		res.Reason = ReasonOther
		res.Message = "interrupted"
		res.ExitCode = -1
	default:
		res.Status = StatusFailed
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Reason, res.Message = Classify(res.Output, r.ProfileMode)
		} else {
			// brew could not be started at all
			res.ExitCode = -1
			res.Reason = ReasonOther
			res.Message = err.Error()
		}
	}

	ev := r.log.Info()
	if !res.OK() {
		ev = r.log.Warn().Str("reason", string(res.Reason)).Str("message", res.Message).Int("exit", res.ExitCode)
	}
	ev.Str("item", cmd.Item).Dur("duration", res.Duration).Bool("ok", res.OK()).Msg("Command finished")

	return res
}

// lineWriter splits written bytes into lines and hands each complete line to fn.
type lineWriter struct {
	fn  func(string)
	buf []byte
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:idx]), "\r")
		w.buf = w.buf[idx+1:]
		w.fn(line)
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) == 0 {
		return
	}
	line := strings.TrimRight(string(w.buf), "\r")
	w.buf = nil
	w.fn(line)
}
