package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar counts through a known number of steps, such as the files
// going into an archive. A terminal gets one redrawn line:
//
//	[==============>               ]  48% Library/Preferences/com.foo.plist
//
// Any other writer gets a single summary line when the bar finishes.
type ProgressBar struct {
	mu     sync.Mutex
	w      io.Writer
	total  int
	done   int
	label  string
	cols   int
	closed bool
}

const barColumns = 30

// NewProgress returns a bar over total steps, labelled until the first Step.
func NewProgress(total int, label string) *ProgressBar {
	return &ProgressBar{w: os.Stdout, total: total, label: label, cols: barColumns}
}

// SetWriter sets the output writer.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

// SetDescription replaces the label without advancing.
func (p *ProgressBar) SetDescription(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

// Step advances one step and shows label. Its signature fits callbacks that
// report the name of each finished unit.
func (p *ProgressBar) Step(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.advance()
}

func (p *ProgressBar) advance() {
	if p.closed {
		return
	}
	if p.done < p.total {
		p.done++
	}
	if writerIsTTY(p.w) {
		fmt.Fprint(p.w, "\r"+p.line())
	}
}

// Finish fills the bar and ends its line. Later calls do nothing.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.done = p.total
	if writerIsTTY(p.w) {
		fmt.Fprint(p.w, "\r")
	}
	fmt.Fprintln(p.w, p.line())
}

// line renders the bar; callers hold mu.
func (p *ProgressBar) line() string {
	pct := 100
	fill := p.cols
	if p.total > 0 {
		pct = p.done * 100 / p.total
		fill = p.done * p.cols / p.total
	}
	bar := strings.Repeat("=", fill)
	if fill > 0 && fill < p.cols {
		bar = bar[:fill-1] + ">"
	}
	return fmt.Sprintf("[%-*s] %3d%% %s", p.cols, bar, pct, p.label)
}

var spinnerFrames = [...]string{"|", "/", "-", "\\"}

const spinnerTick = 100 * time.Millisecond

// Spinner animates a message while a step of unknown length runs, such as
// scanning brew or installing one package:
//
//	|  Installing ripgrep (4m58s remaining)
//
// A writer that is not a terminal gets the message once, without animation.
type Spinner struct {
	mu         sync.Mutex
	writer     io.Writer
	message    string
	running    bool
	done       chan struct{}
	showTiming bool
	timeout    time.Duration
	startTime  time.Time
}

// NewSpinner returns a stopped spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return &Spinner{writer: os.Stdout, message: message}
}

// WithTimeout adds a time suffix: the remaining budget when timeout > 0,
// the elapsed time otherwise. Call it before Start.
func (s *Spinner) WithTimeout(timeout time.Duration) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showTiming = true
	s.timeout = timeout
	return s
}

// SetWriter sets the output writer.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.startTime = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}
	s.done = make(chan struct{})
	go s.animate(s.done)
}

func (s *Spinner) animate(done <-chan struct{}) {
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.writer, "\r%s  %s", spinnerFrames[frame%len(spinnerFrames)], s.formatMessage())
			s.mu.Unlock()
		}
	}
}

// formatMessage returns the message with its time suffix; callers hold mu.
func (s *Spinner) formatMessage() string {
	if !s.showTiming {
		return s.message
	}
	elapsed := time.Since(s.startTime)
	if s.timeout <= 0 {
		return fmt.Sprintf("%s (%s elapsed)", s.message, FormatDuration(elapsed.Truncate(time.Second)))
	}
	left := s.timeout - elapsed
	if left < time.Second {
		return s.message + " (timing out)"
	}
	return fmt.Sprintf("%s (%s remaining)", s.message, FormatDuration(left.Truncate(time.Second)))
}

// Stop ends the animation and clears its line. Stopping twice is safe.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if writerIsTTY(s.writer) {
		// the time suffix adds at most ~24 columns
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+24))
	}
}

// UpdateMessage replaces the message shown by a running spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
