package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher observes a simulation output directory and reports run files as
// they finish being written. It is an ingestion convenience on the outer
// edge of the system: each completed file is one finished run (or a chunk of
// runs), and analysis still happens over finite ingested batches.
type Watcher struct {
	dir     string
	pattern string
	settle  time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger

	fsw   *fsnotify.Watcher
	files chan string
	errs  chan error
	done  chan struct{}
	stop  chan struct{}

	mu      sync.Mutex
	running bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// WatcherConfig holds configuration for a Watcher.
type WatcherConfig struct {
	// Dir is the directory the simulation runner writes finished runs into.
	Dir string

	// Pattern filters file names, matched with filepath.Match.
	// Default: "*.json"
	Pattern string

	// Settle is how long a file must stay quiet after its last write event
	// before it is considered complete. Default: 500ms.
	Settle time.Duration

	// MaxFilesPerSecond caps how fast completed files are emitted, so a
	// runner dumping thousands of logs at once does not stampede ingestion.
	// Default: 20.
	MaxFilesPerSecond float64

	// BufferSize is the size of the files channel buffer. Default: 64.
	BufferSize int

	// Logger receives watch diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// NewWatcher creates a Watcher for the given configuration.
func NewWatcher(config *WatcherConfig) (*Watcher, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if config.Pattern == "" {
		config.Pattern = "*.json"
	}
	if config.Settle == 0 {
		config.Settle = 500 * time.Millisecond
	}
	if config.MaxFilesPerSecond == 0 {
		config.MaxFilesPerSecond = 20
	}
	if config.BufferSize == 0 {
		config.BufferSize = 64
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(config.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", config.Dir, err)
	}

	return &Watcher{
		dir:     config.Dir,
		pattern: config.Pattern,
		settle:  config.Settle,
		limiter: rate.NewLimiter(rate.Limit(config.MaxFilesPerSecond), 1),
		logger:  config.Logger,
		fsw:     fsw,
		files:   make(chan string, config.BufferSize),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}, nil
}

// Files returns the channel of completed run file paths.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start begins watching. It returns immediately; completed files arrive on
// Files until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher closed")
	}
	if w.running {
		return fmt.Errorf("watcher already started")
	}
	w.running = true

	go w.loop(ctx)
	return nil
}

// loop coalesces write events per file and emits a path once it has settled.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.files)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stop:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if matched, _ := filepath.Match(w.pattern, name); !matched {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if err := w.limiter.Wait(ctx); err != nil {
					return
				}
				w.logger.Debug("run file complete", "path", path)
				select {
				case w.files <- path:
				case <-ctx.Done():
					return
				case <-w.stop:
					return
				}
			}
		}
	}
}

// Close stops the watcher and releases its resources. It is safe to call
// more than once and does not require the consumer to drain Files first.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		running := w.running
		w.mu.Unlock()

		close(w.stop)
		w.closeErr = w.fsw.Close()
		if running {
			<-w.done
		} else {
			close(w.files)
		}
	})
	return w.closeErr
}
