package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/palomafofana/port-watcher/internal/scanner"
)

type killCall struct {
	pid  int
	mode scanner.KillMode
}

type fakeSource struct {
	mu      sync.Mutex
	scans   [][]scanner.Port // returned in order; the last one repeats
	calls   int
	killOK  bool
	killed  []killCall
	started chan struct{}
	release chan struct{}
}

func (f *fakeSource) ActivePorts(context.Context) []scanner.Port {
	f.mu.Lock()
	f.calls++
	idx := min(f.calls-1, len(f.scans)-1)
	var ports []scanner.Port
	if idx >= 0 {
		ports = append([]scanner.Port(nil), f.scans[idx]...)
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return ports
}

func (f *fakeSource) Kill(_ context.Context, pid int, mode scanner.KillMode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, killCall{pid, mode})
	return f.killOK
}

func (f *fakeSource) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScheduler struct {
	fn        func()
	interval  time.Duration
	scheduled int
	cancelled int
}

func (s *fakeScheduler) ScheduleRepeating(fn func(), interval time.Duration) func() {
	s.fn = fn
	s.interval = interval
	s.scheduled++
	return func() {
		s.cancelled++
		s.fn = nil
	}
}

// tick fires the scheduled function if a schedule is active.
func (s *fakeScheduler) tick() {
	if s.fn != nil {
		s.fn()
	}
}

var (
	node    = scanner.Port{Port: 3000, PID: 1234, Process: "node", Protocol: "TCP"}
	node6   = scanner.Port{Port: 3001, PID: 1234, Process: "node", Protocol: "TCP"}
	pg      = scanner.Port{Port: 5432, PID: 812, Process: "postgres", Protocol: "TCP"}
	redis   = scanner.Port{Port: 6379, PID: 77, Process: "redis-server", Protocol: "TCP"}
	allPort = []scanner.Port{node, pg, node6, redis}
)

func countNotifications(r *Registry) *int {
	n := 0
	r.Subscribe(func() { n++ })
	return &n
}

func TestRegistry_StartsUnloaded(t *testing.T) {
	r := New(&fakeSource{})

	require.Equal(t, StateUnloaded, r.State())
	require.Empty(t, r.Snapshot())
	require.False(t, r.AutoRefreshEnabled())
	require.Equal(t, DefaultInterval, r.Interval())
}

func TestRegistry_Refresh(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src)
	n := countNotifications(r)

	r.Refresh(context.Background())

	require.Equal(t, allPort, r.Snapshot())
	require.Equal(t, StateLoaded, r.State())
	require.Equal(t, 1, *n)
}

func TestRegistry_RefreshReplacesWholesale(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{{node, pg}, {redis}}}
	r := New(src)

	r.Refresh(context.Background())
	r.Refresh(context.Background())

	require.Equal(t, []scanner.Port{redis}, r.Snapshot())
}

func TestRegistry_RefreshTwiceUnchanged(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src)
	n := countNotifications(r)

	r.Refresh(context.Background())
	first := r.Snapshot()
	r.Refresh(context.Background())
	second := r.Snapshot()

	require.Equal(t, first, second)
	require.Equal(t, 2, *n)
	require.Equal(t, 2, src.scanCount())
}

func TestRegistry_RefreshEmptyStillNotifies(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort, {}}}
	r := New(src)
	n := countNotifications(r)

	r.Refresh(context.Background())
	r.Refresh(context.Background())

	require.Empty(t, r.Snapshot())
	require.Equal(t, StateEmpty, r.State())
	require.Equal(t, 2, *n)
}

func TestRegistry_ChildrenLazyLoad(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{{node, pg}}}
	r := New(src)
	n := countNotifications(r)

	items := r.Children(context.Background())

	require.Len(t, items, 2)
	require.Equal(t, "Port 3000", items[0].Label)
	require.Equal(t, "node (PID: 1234)", items[0].Description)
	require.Equal(t, node, items[0].Port)
	require.Equal(t, 1, src.scanCount())
	require.Equal(t, 0, *n, "implicit load does not notify")

	r.Children(context.Background())
	require.Equal(t, 1, src.scanCount(), "loaded registry is not rescanned")
}

func TestRegistry_ChildrenAfterEmptyScanDoesNotRescan(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{{}}}
	r := New(src)

	require.Empty(t, r.Children(context.Background()))
	require.Empty(t, r.Children(context.Background()))

	require.Equal(t, StateEmpty, r.State())
	require.Equal(t, 1, src.scanCount())
}

func TestRegistry_RemovePort(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src)
	r.Refresh(context.Background())
	n := countNotifications(r)

	r.RemovePort(1234)

	require.Equal(t, []scanner.Port{pg, redis}, r.Snapshot())
	require.Equal(t, 1, *n)
}

func TestRegistry_RemovePortUnknownPIDStillNotifies(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src)
	r.Refresh(context.Background())
	n := countNotifications(r)

	r.RemovePort(424242)

	require.Equal(t, allPort, r.Snapshot())
	require.Equal(t, 1, *n)
}

func TestRegistry_RemoveLastPortIsEmpty(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{{redis}}}
	r := New(src)
	r.Refresh(context.Background())

	r.RemovePort(redis.PID)

	require.Equal(t, StateEmpty, r.State())
	require.Empty(t, r.Children(context.Background()))
	require.Equal(t, 1, src.scanCount())
}

func TestProperty_RemovePortRemovesAllMatching(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ports := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) scanner.Port {
			return scanner.Port{
				Port:     rapid.IntRange(1, 65535).Draw(t, "port"),
				PID:      rapid.IntRange(1, 6).Draw(t, "pid"),
				Process:  "proc",
				Protocol: "TCP",
			}
		}), 0, 30).Draw(rt, "ports")
		pid := rapid.IntRange(1, 6).Draw(rt, "remove")

		r := New(&fakeSource{scans: [][]scanner.Port{ports}})
		r.Refresh(context.Background())
		n := countNotifications(r)

		r.RemovePort(pid)

		var want []scanner.Port
		for _, p := range ports {
			if p.PID != pid {
				want = append(want, p)
			}
		}
		got := r.Snapshot()
		require.Len(rt, got, len(want))
		for i := range want {
			require.Equal(rt, want[i], got[i])
		}
		require.Equal(rt, 1, *n)
	})
}

func TestRegistry_Kill(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}, killOK: true}
	r := New(src)
	r.Refresh(context.Background())
	n := countNotifications(r)

	require.True(t, r.Kill(context.Background(), 1234, scanner.ModeGraceful))

	require.Equal(t, []killCall{{1234, scanner.ModeGraceful}}, src.killed)
	require.Equal(t, []scanner.Port{pg, redis}, r.Snapshot())
	require.Equal(t, 1, *n)
}

func TestRegistry_KillFailureKeepsRecords(t *testing.T) {
	src := &fakeSource{scans: [][]scanner.Port{allPort}, killOK: false}
	r := New(src)
	r.Refresh(context.Background())
	n := countNotifications(r)

	require.False(t, r.Kill(context.Background(), 812, scanner.ModeForce))

	require.Equal(t, allPort, r.Snapshot())
	require.Equal(t, 0, *n)
}

func TestRegistry_SubscribersInOrder(t *testing.T) {
	r := New(&fakeSource{})
	var order []int
	r.Subscribe(func() { order = append(order, 1) })
	unsubscribe := r.Subscribe(func() { order = append(order, 2) })
	r.Subscribe(func() { order = append(order, 3) })

	r.RemovePort(1)
	unsubscribe()
	unsubscribe()
	r.RemovePort(1)

	require.Equal(t, []int{1, 2, 3, 1, 3}, order)
}

func TestRegistry_ToggleAutoRefresh(t *testing.T) {
	sched := &fakeScheduler{}
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src, WithScheduler(sched), WithInterval(2*time.Second))
	n := countNotifications(r)

	require.True(t, r.ToggleAutoRefresh())
	require.True(t, r.AutoRefreshEnabled())
	require.Equal(t, 2*time.Second, sched.interval)

	sched.tick()
	sched.tick()
	require.Equal(t, 2, src.scanCount())
	require.Equal(t, 2, *n)

	require.False(t, r.ToggleAutoRefresh())
	require.False(t, r.AutoRefreshEnabled())
	require.Equal(t, 1, sched.cancelled)

	sched.tick()
	require.Equal(t, 2, src.scanCount(), "no refresh after the schedule is cancelled")
}

func TestRegistry_LateTickAfterToggleOff(t *testing.T) {
	sched := &fakeScheduler{}
	src := &fakeSource{scans: [][]scanner.Port{allPort}}
	r := New(src, WithScheduler(sched))
	n := countNotifications(r)

	r.ToggleAutoRefresh()
	first := sched.fn
	require.False(t, r.ToggleAutoRefresh())

	// A tick that was already on its way when the schedule was cancelled.
	first()
	require.Equal(t, 0, src.scanCount())
	require.Equal(t, 0, *n)

	// Re-enabling starts a new schedule; the old one stays dead.
	require.True(t, r.ToggleAutoRefresh())
	first()
	require.Equal(t, 0, src.scanCount())

	sched.tick()
	require.Equal(t, 1, src.scanCount())
	require.Equal(t, 1, *n)
}

func TestRegistry_ToggleSingleSchedule(t *testing.T) {
	sched := &fakeScheduler{}
	r := New(&fakeSource{}, WithScheduler(sched))

	for i := 0; i < 5; i++ {
		r.ToggleAutoRefresh()
	}

	require.True(t, r.AutoRefreshEnabled())
	require.Equal(t, 3, sched.scheduled)
	require.Equal(t, 2, sched.cancelled)
	require.Equal(t, sched.scheduled-sched.cancelled, 1)
}

func TestRegistry_DefaultIntervalWhenInvalid(t *testing.T) {
	sched := &fakeScheduler{}
	r := New(&fakeSource{}, WithScheduler(sched), WithInterval(0))

	r.ToggleAutoRefresh()

	require.Equal(t, DefaultInterval, sched.interval)
}

func TestRegistry_Close(t *testing.T) {
	sched := &fakeScheduler{}
	r := New(&fakeSource{}, WithScheduler(sched))
	n := countNotifications(r)
	r.ToggleAutoRefresh()

	r.Close()

	require.False(t, r.AutoRefreshEnabled())
	require.Equal(t, 1, sched.cancelled)
	r.RemovePort(1)
	require.Equal(t, 0, *n, "subscribers are dropped on close")
}

func TestRegistry_ConcurrentRefreshSharesScan(t *testing.T) {
	src := &fakeSource{
		scans:   [][]scanner.Port{allPort},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	r := New(src)
	var mu sync.Mutex
	notified := 0
	r.Subscribe(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.Refresh(context.Background())
	}()
	<-src.started
	go func() {
		defer wg.Done()
		r.Refresh(context.Background())
	}()
	// Give the second caller time to join the in-flight scan.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	require.Equal(t, 1, src.scanCount())
	require.Equal(t, allPort, r.Snapshot())
	mu.Lock()
	require.Equal(t, 2, notified)
	mu.Unlock()
}

func TestItems(t *testing.T) {
	items := Items([]scanner.Port{pg})

	require.Equal(t, []Item{{
		Label:       "Port 5432",
		Description: "postgres (PID: 812)",
		Tooltip:     "Port: 5432\nProtocol: TCP\nProcess: postgres\nPID: 812",
		Port:        pg,
	}}, items)
	require.NotNil(t, Items(nil))
}
