package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet after a write burst
// before its new lines are processed.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration // 0 means DefaultDebounce
	Dedup    bool
	DedupTTL time.Duration // 0 means DefaultDedupTTL
}

// Watcher tails files and emits error blocks. One goroutine drives all
// state; only Run touches it.
type Watcher struct {
	fs      *fsnotify.Watcher
	opts    Options
	onBlock func(file, block string)

	offsets map[string]int64
	partial map[string]string
	aggs    map[string]*Aggregator
	dirty   map[string]time.Time
	dedup   *Deduper
}

// New starts watching the given files. Existing content is skipped; only
// lines appended after the watcher starts are reported, through onBlock.
func New(files []string, opts Options, onBlock func(file, block string)) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}

	w := &Watcher{
		fs:      fs,
		opts:    opts,
		onBlock: onBlock,
		offsets: make(map[string]int64),
		partial: make(map[string]string),
		aggs:    make(map[string]*Aggregator),
		dirty:   make(map[string]time.Time),
	}
	if opts.Dedup {
		w.dedup = NewDeduper(opts.DedupTTL)
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("watching %s: %w", f, err)
		}
		if err := fs.Add(f); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watching %s: %w", f, err)
		}
		w.offsets[f] = info.Size()
		w.aggs[f] = &Aggregator{}
	}
	return w, nil
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flushAll()
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.dirty[ev.Name] = time.Now()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher: %w", err)

		case now := <-ticker.C:
			for file, at := range w.dirty {
				if now.Sub(at) >= w.opts.Debounce {
					delete(w.dirty, file)
					w.drain(file)
				}
			}
		}
	}
}

// drain reads lines appended to file since the last offset and feeds them
// through the aggregator.
func (w *Watcher) drain(file string) {
	f, err := os.Open(file)
	if err != nil {
		return
	}
	defer f.Close()

	offset := w.offsets[file]
	if info, err := f.Stat(); err == nil && info.Size() < offset {
		// Truncated or rotated: start over from the top.
		offset = 0
		w.partial[file] = ""
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return
	}
	w.offsets[file] = offset + int64(len(data))

	text := w.partial[file] + string(data)
	lines := strings.Split(text, "\n")
	// The final element is an unterminated partial line; hold it back.
	w.partial[file] = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	agg := w.aggs[file]
	for _, line := range lines {
		if block, done := agg.Add(line); done && block != "" {
			w.emit(file, block)
		}
	}
}

// flushAll drains pending partial blocks on shutdown.
func (w *Watcher) flushAll() {
	for file, agg := range w.aggs {
		if block, ok := agg.Flush(); ok {
			w.emit(file, block)
		}
	}
}

func (w *Watcher) emit(file, block string) {
	if w.dedup != nil && w.dedup.Seen(block) {
		return
	}
	w.onBlock(file, block)
}
