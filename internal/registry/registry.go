// Package registry holds the last known list of listening ports and keeps
// subscribers informed as it is refreshed, trimmed after kills, or
// re-scanned on an interval.
package registry

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/palomafofana/port-watcher/internal/log"
	"github.com/palomafofana/port-watcher/internal/scanner"
)

// DefaultInterval is the auto refresh period when none is configured.
const DefaultInterval = 5 * time.Second

// Source lists ports and terminates processes. *scanner.Scanner satisfies it.
type Source interface {
	ActivePorts(ctx context.Context) []scanner.Port
	Kill(ctx context.Context, pid int, mode scanner.KillMode) bool
}

// State distinguishes a registry that has never scanned from one whose last
// scan found nothing.
type State int

const (
	StateUnloaded State = iota
	StateEmpty
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithScheduler replaces the ticker-based scheduler used for auto refresh.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.scheduler = s }
}

// WithInterval sets the auto refresh period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

type subscriber struct {
	id int
	fn func()
}

// Registry is safe for concurrent use.
type Registry struct {
	source    Source
	scheduler Scheduler
	interval  time.Duration
	scans     singleflight.Group

	mu          sync.Mutex
	ports       []scanner.Port
	state       State
	autoRefresh bool
	autoGen     int
	cancelAuto  func()
	subs        []subscriber
	nextSubID   int
}

// New returns an empty, unloaded Registry backed by source.
func New(source Source, opts ...Option) *Registry {
	r := &Registry{
		source:    source,
		scheduler: TickerScheduler{},
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh rescans and replaces the port list wholesale, then notifies
// subscribers once. Overlapping calls share a single scan.
func (r *Registry) Refresh(ctx context.Context) {
	r.load(ctx)
	r.notify()
}

func (r *Registry) load(ctx context.Context) {
	_, _, shared := r.scans.Do("scan", func() (any, error) {
		ports := r.source.ActivePorts(ctx)

		r.mu.Lock()
		r.ports = ports
		if len(ports) == 0 {
			r.state = StateEmpty
		} else {
			r.state = StateLoaded
		}
		r.mu.Unlock()

		log.Debug(log.CatRegistry, "ports loaded", "count", len(ports))
		return nil, nil
	})
	if shared {
		log.Debug(log.CatRegistry, "joined in-flight scan")
	}
}

// Children returns the current list as presentable items. It scans once,
// without notifying, if the registry has never been loaded. A load that
// found no ports is not repeated.
func (r *Registry) Children(ctx context.Context) []Item {
	if r.State() == StateUnloaded {
		r.load(ctx)
	}
	return Items(r.Snapshot())
}

// Snapshot returns a copy of the current records.
func (r *Registry) Snapshot() []scanner.Port {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ports)
}

// State reports whether the registry has loaded and found any ports.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RemovePort drops every record owned by pid and notifies subscribers once.
func (r *Registry) RemovePort(pid int) {
	r.mu.Lock()
	before := len(r.ports)
	r.ports = slices.DeleteFunc(r.ports, func(p scanner.Port) bool {
		return p.PID == pid
	})
	if r.state == StateLoaded && len(r.ports) == 0 {
		r.state = StateEmpty
	}
	removed := before - len(r.ports)
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "removed port records", "pid", pid, "removed", removed)
	r.notify()
}

// Kill terminates pid and, if that succeeds, removes its records.
func (r *Registry) Kill(ctx context.Context, pid int, mode scanner.KillMode) bool {
	if !r.source.Kill(ctx, pid, mode) {
		return false
	}
	r.RemovePort(pid)
	return true
}

// ToggleAutoRefresh flips auto refresh and reports the new setting. Turning it
// off cancels the schedule but lets a scan already in flight finish.
func (r *Registry) ToggleAutoRefresh() bool {
	r.mu.Lock()
	if r.autoRefresh {
		cancel := r.stopAutoLocked()
		r.mu.Unlock()
		cancel()
		log.Info(log.CatRegistry, "auto refresh disabled")
		return false
	}

	r.autoRefresh = true
	r.autoGen++
	gen := r.autoGen
	r.cancelAuto = r.scheduler.ScheduleRepeating(func() {
		r.scheduledRefresh(gen)
	}, r.interval)
	r.mu.Unlock()

	log.Info(log.CatRegistry, "auto refresh enabled", "interval", r.interval)
	return true
}

// scheduledRefresh runs one tick of the schedule started as generation gen.
// Ticks that arrive after that schedule was cancelled are dropped.
func (r *Registry) scheduledRefresh(gen int) {
	r.mu.Lock()
	live := r.autoRefresh && r.autoGen == gen
	r.mu.Unlock()
	if !live {
		log.Debug(log.CatRegistry, "dropping stale auto refresh tick", "generation", gen)
		return
	}
	r.Refresh(context.Background())
}

// AutoRefreshEnabled reports whether a refresh schedule is active.
func (r *Registry) AutoRefreshEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoRefresh
}

// Interval returns the auto refresh period.
func (r *Registry) Interval() time.Duration {
	return r.interval
}

// Close cancels auto refresh and drops all subscribers.
func (r *Registry) Close() {
	r.mu.Lock()
	cancel := r.stopAutoLocked()
	r.subs = nil
	r.mu.Unlock()
	cancel()
}

func (r *Registry) stopAutoLocked() (cancel func()) {
	cancel = r.cancelAuto
	if cancel == nil {
		cancel = func() {}
	}
	r.autoRefresh = false
	r.autoGen++
	r.cancelAuto = nil
	return cancel
}

// Subscribe registers fn to run after every change to the port list.
// Subscribers run synchronously, in the order they subscribed.
func (r *Registry) Subscribe(fn func()) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSubID++
	id := r.nextSubID
	r.subs = append(r.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.subs = slices.DeleteFunc(r.subs, func(s subscriber) bool {
				return s.id == id
			})
		})
	}
}

func (r *Registry) notify() {
	r.mu.Lock()
	subs := slices.Clone(r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn()
	}
}
