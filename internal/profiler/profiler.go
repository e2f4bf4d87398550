// Package profiler implements the sampling profiler collaborator spec.md
// treats as an external service (§1's out-of-scope list): an independent
// goroutine that periodically snapshots heap statistics to a file, plus a
// fsnotify watchdog that flags external tampering with a live allocator's
// backing files. Grounded on the teacher's internal/runtime MetricsCollector
// sampling-loop shape and internal/runtime/vfs's fsnotify wrapper.
package profiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/vireoheap/mmapheap/internal/diag"
)

// StatsSchemaVersion is the semantic version of the JSON shape Snapshot
// encodes to. Bumped whenever a field is added or renamed so that stats
// files written by an older build remain recognizable.
const StatsSchemaVersion = "1.0.0"

// Snapshot is one sample of heap-wide statistics, serialized to the
// profile file on each tick.
type Snapshot struct {
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	LiveBlocks    int       `json:"live_blocks"`
	FreeBlocks    int       `json:"free_blocks"`
	BytesInUse    uintptr   `json:"bytes_in_use"`
	BytesFree     uintptr   `json:"bytes_free"`
	HostAllocs    uint64    `json:"host_allocations"`
	HostFrees     uint64    `json:"host_frees"`
}

// Source is whatever the dispatcher exposes for the profiler to sample.
// Kept as a narrow interface so the profiler package never imports the
// dispatcher and create a cycle.
type Source interface {
	Sample() Snapshot
}

// Profiler periodically samples a Source and writes JSON snapshots to a
// file, per spec.md §6's ENV_PROFILE_FILE_PATH/ENV_PROFILE_FREQUENCY pair.
type Profiler struct {
	path string
	freq time.Duration
	src  Source

	mu       sync.Mutex
	required *semver.Version

	wd     *Watchdog
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a profiler that will write to path every freq, sampling src.
// It does not start the sampling goroutine; call Start for that.
func New(path string, freq time.Duration, src Source) (*Profiler, error) {
	v, err := semver.NewVersion(StatsSchemaVersion)
	if err != nil {
		return nil, diag.New(diag.ConfigInvalid, "invalid stats schema version %q: %v", StatsSchemaVersion, err)
	}

	return &Profiler{path: path, freq: freq, src: src, required: v}, nil
}

// Start launches the sampling goroutine and the backing-file watchdog.
// Stop must be called to release both; the profiler otherwise runs for
// the lifetime of the process, same as the heap it samples.
func (p *Profiler) Start() {
	if wd, err := NewWatchdog(os.TempDir()); err != nil {
		diag.Logf("profiler: watchdog disabled: %v", err)
	} else {
		p.wd = wd
		go p.watchTampers(wd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx)
}

// watchTampers drains a Watchdog's tamper reports for the life of the
// profiler, logging each as a diagnostic.
func (p *Profiler) watchTampers(wd *Watchdog) {
	for name := range wd.Tampers() {
		diag.Logf("watchdog: backing file %q was modified or removed externally", name)
	}
}

// Stop signals the sampling goroutine and the watchdog to exit and waits
// for the sampling goroutine.
func (p *Profiler) Stop() {
	if p.wd != nil {
		p.wd.Close()
		p.wd = nil
	}

	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Profiler) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.writeSnapshot(); err != nil {
				diag.Logf("profiler: %v", err)
			}
		}
	}
}

// writeSnapshot appends one newline-delimited JSON record to the stats
// file, mirroring the original's fopen(path, "a") append-and-keep-history
// behavior rather than overwriting the single most recent sample.
func (p *Profiler) writeSnapshot() error {
	snap := p.src.Sample()
	snap.SchemaVersion = StatsSchemaVersion

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.rotateIfIncompatible(); err != nil {
		diag.Logf("profiler: %v", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// rotateIfIncompatible moves an existing stats file aside if its most
// recent record was written by a build whose schema major version this
// one can't interpret, so an incompatible history is never silently
// appended to with records a reader of the old schema can't parse either,
// and never silently merged with the new shape.
func (p *Profiler) rotateIfIncompatible() error {
	existing, err := os.ReadFile(p.path)
	if err != nil || len(existing) == 0 {
		return nil // no prior file, or unreadable; nothing to rotate
	}

	last := lastNonEmptyLine(existing)
	if last == "" {
		return nil
	}

	var prior struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal([]byte(last), &prior); err != nil || prior.SchemaVersion == "" {
		return nil
	}

	ok, err := CompatibleWith(prior.SchemaVersion)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	return os.Rename(p.path, p.path+".previous")
}

func lastNonEmptyLine(data []byte) string {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return lines[len(lines)-1]
}

// CompatibleWith reports whether a stats file written with fileVersion can
// be interpreted by this build: same major version, file version no newer
// than what this build knows how to write.
func CompatibleWith(fileVersion string) (bool, error) {
	fv, err := semver.NewVersion(fileVersion)
	if err != nil {
		return false, diag.New(diag.ConfigInvalid, "malformed stats schema version %q: %v", fileVersion, err)
	}

	built, err := semver.NewVersion(StatsSchemaVersion)
	if err != nil {
		return false, err
	}

	return fv.Major() == built.Major() && !fv.GreaterThan(built), nil
}
