package profiler

import (
	"github.com/fsnotify/fsnotify"

	"github.com/vireoheap/mmapheap/internal/diag"
)

// Watchdog watches the system temp directory for writes or removals of
// this process's own backing files, something no well-behaved caller
// should ever do since they never hold a path to unlink. Grounded on the
// teacher's FSNotifyWatcher, trimmed to the one directory this allocator
// cares about and reduced to a single tamper-report channel instead of a
// general Watcher interface.
type Watchdog struct {
	w       *fsnotify.Watcher
	tampers chan string
}

// NewWatchdog starts watching dir (typically os.TempDir()) for filesystem
// events. Because every backing file is unlinked immediately after
// creation (spec.md §4.5.1), any Write or Remove event naming one of this
// process's file names after that point means something outside the
// allocator touched it.
func NewWatchdog(dir string) (*Watchdog, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, diag.New(diag.MappingFailed, "starting backing-file watchdog failed: %v", err)
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, diag.New(diag.MappingFailed, "watching %q failed: %v", dir, err)
	}

	wd := &Watchdog{w: w, tampers: make(chan string, 32)}
	go wd.loop()

	return wd, nil
}

func (wd *Watchdog) loop() {
	for {
		select {
		case ev, ok := <-wd.w.Events:
			if !ok {
				close(wd.tampers)
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				select {
				case wd.tampers <- ev.Name:
				default:
				}
			}
		case err, ok := <-wd.w.Errors:
			if !ok {
				return
			}
			diag.Logf("watchdog: %v", err)
		}
	}
}

// Tampers reports paths that were written, removed, or renamed after this
// allocator unlinked them. Since unlinked backing files should never be
// externally addressable, every event on this channel indicates tampering
// rather than normal allocator activity.
func (wd *Watchdog) Tampers() <-chan string {
	return wd.tampers
}

// Close stops the watchdog.
func (wd *Watchdog) Close() error {
	return wd.w.Close()
}
