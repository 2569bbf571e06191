package hermes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultWatchDelay is the debounce delay used when WatcherOptions.Delay is zero.
const DefaultWatchDelay = time.Second

// SentenceWatcher retrains when sentence files change on disk.
//
// The parent directories are watched rather than the files themselves so
// that editors which save by renaming a temp file are still seen. Bursts
// of events are collapsed into one train after Delay of quiet.
type SentenceWatcher struct {
	files  map[string]struct{}
	paths  []string
	delay  time.Duration
	siteID string
	submit func(NluTrain) error
	logger Logger
}

// WatcherOptions configures a SentenceWatcher.
type WatcherOptions struct {
	// Files are the sentence files to train from. Required.
	Files []string

	// Delay is the debounce delay.
	Delay time.Duration

	// SiteID is set on the resulting train requests.
	SiteID string

	// Submit queues a train request, typically Bridge.SubmitTrain. Required.
	Submit func(NluTrain) error

	Logger Logger
}

// NewSentenceWatcher creates a watcher. Call Run to start it.
func NewSentenceWatcher(opts WatcherOptions) (*SentenceWatcher, error) {
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("%w: sentence files", ErrMissingDependency)
	}
	if opts.Submit == nil {
		return nil, fmt.Errorf("%w: submit function", ErrMissingDependency)
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	w := &SentenceWatcher{
		files:  make(map[string]struct{}, len(opts.Files)),
		delay:  delay,
		siteID: opts.SiteID,
		submit: opts.Submit,
		logger: opts.Logger,
	}
	for _, f := range opts.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		if _, seen := w.files[abs]; !seen {
			w.files[abs] = struct{}{}
			w.paths = append(w.paths, abs)
		}
	}
	return w, nil
}

// ReadSentenceFiles reads each file into a sentences payload keyed by path.
// Every value is an ini document with [Intent] sections.
func ReadSentenceFiles(files []string) (map[string]any, error) {
	sentences := make(map[string]any, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading sentences: %w", err)
		}
		sentences[f] = string(data)
	}
	return sentences, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *SentenceWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck // Nothing to do on shutdown

	dirs := make(map[string]struct{})
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	w.logInfo("watching sentence files", "files", w.paths, "delay", w.delay)

	timer := time.NewTimer(w.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logDebug("sentence file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(w.delay)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logWarn("file watcher error", "error", err)

		case <-timer.C:
			w.retrain()
		}
	}
}

// relevant reports whether ev touches one of the watched files.
func (w *SentenceWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// retrain reads the files and submits a train request. A file missing
// mid-save is skipped until the next event.
func (w *SentenceWatcher) retrain() {
	sentences, err := ReadSentenceFiles(w.paths)
	if err != nil {
		w.logWarn("skipping retrain", "error", err)
		return
	}

	req := NluTrain{
		ID:        uuid.NewString(),
		Sentences: sentences,
		SiteID:    w.siteID,
	}
	if err := w.submit(req); err != nil {
		if errors.Is(err, ErrStopped) {
			return
		}
		w.logWarn("retrain rejected", "id", req.ID, "error", err)
		return
	}
	w.logInfo("retrain queued", "id", req.ID)
}

func (w *SentenceWatcher) logInfo(msg string, keysAndValues ...any) {
	if w.logger != nil {
		w.logger.Info(msg, keysAndValues...)
	}
}

func (w *SentenceWatcher) logWarn(msg string, keysAndValues ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, keysAndValues...)
	}
}

func (w *SentenceWatcher) logDebug(msg string, keysAndValues ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, keysAndValues...)
	}
}
