package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches the kill switch policy file and re-applies it on
// change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	server   *Server
	path     string
	debounce time.Duration
}

// NewReloader watches the directory holding the server's policy file, so
// the file may be created or replaced after start.
func NewReloader(server *Server) (*Reloader, error) {
	if server.cfg.PolicyPath == "" {
		return nil, fmt.Errorf("no policy path configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(server.cfg.PolicyPath)
	if _, err := os.Stat(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("policy directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	return &Reloader{
		watcher:  watcher,
		server:   server,
		path:     filepath.Clean(server.cfg.PolicyPath),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Run watches for file changes and reloads the policy. Blocks until ctx
// is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// wait for writes to settle before reloading
	var debounce *time.Timer
	log := r.server.log.WithField("path", r.path)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, func() {
					if err := r.server.ReloadPolicy(ctx); err != nil {
						log.WithError(err).Error("hot-reload failed")
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		}
	}
}
