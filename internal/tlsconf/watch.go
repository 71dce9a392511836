package tlsconf

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

// reloadDebounce collapses the burst of events an editor or cert renewal
// produces into one reload.
const reloadDebounce = 500 * time.Millisecond

// Watch reloads the key pair whenever the certificate or key file changes.
// A failed reload is logged and the previous certificate stays active.
// Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsconf: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch directories so rename-based updates are seen.
	certDir := filepath.Dir(s.cfg.CertFile)
	keyDir := filepath.Dir(s.cfg.KeyFile)
	if err := watcher.Add(certDir); err != nil {
		return fmt.Errorf("tlsconf: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := watcher.Add(keyDir); err != nil {
			return fmt.Errorf("tlsconf: watch %s: %w", keyDir, err)
		}
	}

	logging.Info("Certificate watcher started",
		zap.String("cert_file", s.cfg.CertFile),
		zap.String("key_file", s.cfg.KeyFile),
	)

	certBase := filepath.Base(s.cfg.CertFile)
	keyBase := filepath.Base(s.cfg.KeyFile)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(event.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logging.Debug("Certificate file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			pending = time.After(reloadDebounce)

		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				logging.Error("Certificate reload failed, keeping previous certificate",
					zap.String("cert_file", s.cfg.CertFile),
					zap.Error(err),
				)
				continue
			}
			logging.Info("Certificate reloaded", zap.String("cert_file", s.cfg.CertFile))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Certificate watcher error", zap.Error(err))
		}
	}
}
