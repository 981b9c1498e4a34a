package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/macsnap/internal/ledger"
)

// DefaultDebounce is how long the Watcher waits for a burst of events to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls a handler with the freshly read ledger every time the file
// at path changes.
type Watcher struct {
	path     string
	onChange func(*ledger.Ledger)

	// Debounce coalesces events that arrive within this window.
	Debounce time.Duration
	// Log receives watch errors and unreadable ledgers.
	Log zerolog.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Watcher for the ledger at path.
func New(path string, onChange func(*ledger.Ledger)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change handler cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		Debounce: DefaultDebounce,
		Log:      zerolog.Nop(),
		stopCh:   make(chan struct{}),
	}, nil
}

// Path returns the absolute path being followed.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The containing directory must exist. If the ledger
// already exists the handler is called once immediately.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.fsw = fsw

	if _, err := os.Stat(w.path); err == nil {
		w.emit()
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// run drains fsnotify events until Stop is called.
func (w *Watcher) run() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.Debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.emit()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Log.Warn().Err(err).Str("path", w.path).Msg("watch error")

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// relevant reports whether ev can have changed the ledger's contents.
// Temp files written next to the ledger are ignored until they are renamed.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}

// emit reads the ledger and hands it to the handler. A missing file is
// skipped quietly because a rename briefly removes it.
func (w *Watcher) emit() {
	l, err := ledger.Read(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.Log.Debug().Err(err).Str("path", w.path).Msg("ledger not readable yet")
		}
		return
	}
	w.onChange(l)
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}
