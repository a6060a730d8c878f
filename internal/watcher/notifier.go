package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// openNotifier returns an fsnotify watcher on s.dir that has already
// reported a marker file created there. Network mounts often accept the
// watch and then deliver nothing, so a watch that stays silent is an error.
func (s *Service) openNotifier() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := s.awaitMarker(w); err != nil {
		w.Close() //nolint:errcheck
		return nil, err
	}
	return w, nil
}

func (s *Service) awaitMarker(w *fsnotify.Watcher) error {
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	f, err := os.CreateTemp(s.dir, ".hashscan-check-*")
	if err != nil {
		return fmt.Errorf("creating marker file: %w", err)
	}
	marker := filepath.Base(f.Name())
	f.Close()                 //nolint:errcheck
	defer os.Remove(f.Name()) //nolint:errcheck

	timer := time.NewTimer(s.notifyTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if ev.Has(fsnotify.Create) && filepath.Base(ev.Name) == marker {
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			return fmt.Errorf("fsnotify: %w", err)
		case <-timer.C:
			return fmt.Errorf("no event for marker file within %s", s.notifyTimeout)
		}
	}
}
