// Package restrict holds the list of tags that may not be saved.
//
// The list is a plain text file with one tag per line. Blank lines and lines
// starting with # are ignored. When watched, edits to the file take effect
// without a restart.
package restrict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
)

// List is a hot-reloadable restricted tag set. The zero value restricts
// nothing.
type List struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	tags map[string]struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New returns a list restricting exactly tags.
func New(tags ...string) *List {
	l := &List{logger: slog.Default()}
	l.set(tags)
	return l
}

// Load reads the list at path. An empty path or a missing file yields an
// empty list that still picks the file up once it appears.
func Load(path string, logger *slog.Logger) (*List, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &List{path: path, logger: logger}
	if path == "" {
		return l, nil
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload rereads the file.
func (l *List) Reload() error {
	if l.path == "" {
		return nil
	}
	tags, err := readFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read restricted tags: %w", err)
	}
	l.set(tags)
	l.logger.Info("restricted tags loaded", "path", l.path, "count", len(tags))
	return nil
}

// Check returns a validation error listing the restricted tags among tags.
func (l *List) Check(tags []string) error {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var offending []string
	for _, t := range tags {
		if _, ok := l.tags[normalize(t)]; ok && !slices.Contains(offending, t) {
			offending = append(offending, t)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return domainerrors.ValidationWithDetails(
		"restricted tags are not allowed: "+strings.Join(offending, ", "),
		map[string]any{"restricted": offending},
	)
}

// Tags returns the restricted tags, sorted.
func (l *List) Tags() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.tags))
	for t := range l.tags {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Watch reloads the list whenever the file changes until ctx is done or
// Close is called. The parent directory is watched so editors that replace
// the file are handled.
func (l *List) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}

	l.watcher = w
	l.done = make(chan struct{})
	l.wg.Add(1)
	go l.processEvents(ctx)
	return nil
}

func (l *List) processEvents(ctx context.Context) {
	defer l.wg.Done()
	target := filepath.Clean(l.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Warn("failed to reload restricted tags", "path", l.path, "error", err)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("restricted tags watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (l *List) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	err := l.watcher.Close()
	l.wg.Wait()
	l.watcher = nil
	return err
}

func (l *List) set(tags []string) {
	m := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		m[normalize(t)] = struct{}{}
	}
	l.mu.Lock()
	l.tags = m
	l.mu.Unlock()
}

// normalize case-folds the NFKC form, so "Café" typed with a combining
// accent or in capitals still matches "café".
func normalize(tag string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(tag)))
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tags []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tags = append(tags, line)
	}
	return tags, sc.Err()
}
