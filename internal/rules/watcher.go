package rules

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch hot-reloads the rule file when it changes on disk. Watching the
// containing directory is more reliable than watching the file directly
// (editors replace files on save). Blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, filePath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create rules watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to resolve rules path %s: %v", filePath, err)
		return
	}

	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch %s: %v", dir, err)
		return
	}

	log.Printf("👁️  Watching %s for rule changes (hot-reload enabled)", filePath)

	// Debounce so a burst of editor writes triggers a single reload
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := e.LoadFile(absPath); err != nil {
						log.Printf("❌ Failed to reload rules from %s: %v", filePath, err)
					} else {
						log.Printf("🔄 Rules reloaded from %s", filePath)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Rules watcher error: %v", err)
		}
	}
}
