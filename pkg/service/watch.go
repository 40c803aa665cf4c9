package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/astatarinov/calc/pkg/store"
)

// Watch loads dir and keeps the stored batches in sync with its files until
// ctx is done. Created or written files are (re)loaded and removed or renamed
// files delete their batch.
func (s *Service) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating batch watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if _, err := s.LoadDir(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.handleEvent(dir, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: batch watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (s *Service) handleEvent(dir string, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !isBatchFile(name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		batchID := batchFileID(name)
		if owner, ok := s.sourceOf(batchID); ok && owner != name {
			return
		}
		if err := s.DeleteBatch(store.BatchName(batchID)); err == nil {
			log.Printf("Removed batch %q (%s is gone)", batchID, name)
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		// Partially written files fail to parse and load on a later write.
		if err := s.loadFile(dir, name); err != nil {
			log.Printf("Warning: could not load %q: %v", name, err)
		}
	}
}
