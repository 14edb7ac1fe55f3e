package hotfolder

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagecapture/internal/logging"
)

// settleDelay lets a scanner finish writing before a notify-triggered scan.
const settleDelay = 500 * time.Millisecond

// RunOptions controls the scan loop.
type RunOptions struct {
	// Interval between scans; defaults to the watcher's configured interval.
	Interval time.Duration
	// StopAfter bounds the number of scans when positive.
	StopAfter int
	// BatchID tags every scan of this run; empty gives each scan its own.
	BatchID string
}

// Run scans immediately and then on every interval tick until ctx is
// cancelled or StopAfter scans have completed. With notify enabled, file
// creation in the watch directory triggers an extra scan once writes settle.
func (w *Watcher) Run(ctx context.Context, opts RunOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = w.interval
	}

	events, closeNotify := w.startNotify()
	defer closeNotify()

	scans := 0
	scan := func() bool {
		if _, err := w.ScanOnce(ctx, opts.BatchID); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(w.logger, "watch directory scan failed",
				"scan_failed",
				logging.String("dir", w.dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that watch_dir exists and is readable"),
				logging.String(logging.FieldImpact, "new scans are not ingested until the directory is readable"),
			)
		}
		scans++
		return opts.StopAfter > 0 && scans >= opts.StopAfter
	}

	if scan() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if scan() {
				return nil
			}
		case <-settleC:
			settleC = nil
			if scan() {
				return nil
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
			} else {
				settle.Reset(settleDelay)
			}
			settleC = settle.C
		}
	}
}

// startNotify subscribes to watch directory events when enabled. The returned
// channel is nil when notifications are off or unavailable.
func (w *Watcher) startNotify() (<-chan fsnotify.Event, func()) {
	if !w.notify {
		return nil, func() {}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(w.logger, "filesystem notifications unavailable",
			"notify_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify limits or disable watcher.notify"),
			logging.String(logging.FieldImpact, "new files picked up on the poll interval only"),
		)
		return nil, func() {}
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		logging.WarnWithContext(w.logger, "failed to watch directory for notifications",
			"notify_unavailable",
			logging.String("dir", w.dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that watch_dir exists"),
			logging.String(logging.FieldImpact, "new files picked up on the poll interval only"),
		)
		return nil, func() {}
	}

	events := make(chan fsnotify.Event)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			select {
			case <-done:
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				select {
				case events <- event:
				case <-done:
					return
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Debug("filesystem notification error", logging.Error(err))
			}
		}
	}()
	return events, func() {
		close(done)
		_ = fsw.Close()
	}
}
