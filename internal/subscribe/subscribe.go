// Package subscribe implements the live data subscription layer: poll-driven
// re-query with content-hash debounce, retry/backoff
// into a degraded connection state, and an fsnotify watch on the database
// file to shorten the wait between ticks. Each subscription's poll
// goroutine is started through an errgroup; Unsubscribe cancels its
// context, which ends the loop and stops its timer. The file watch is
// shared by the Manager and closed by Manager.Close.
package subscribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"isometry/internal/logging"
	"isometry/internal/model"
	"isometry/internal/query"
)

// Quality is the connection-quality status derived from recent latency and
// retry counter.
type Quality string

const (
	QualityHealthy      Quality = "healthy"
	QualityDegraded     Quality = "degraded"
	QualityDisconnected Quality = "disconnected"
)

// Config enumerates a subscription's timing knobs, with their defaults and
// clamped bounds.
type Config struct {
	PollIntervalMs int // [100, 300_000], default 1000
	ThrottleMs     int // [0, 60_000], default = PollIntervalMs
	MaxRetries     int // default 5
	BackoffBase    int // default 2
}

// normalize fills defaults and clamps every knob to its allowed range.
func (c Config) normalize() Config {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = 1000
	}
	c.PollIntervalMs = clamp(c.PollIntervalMs, 100, 300_000)

	if c.ThrottleMs <= 0 {
		c.ThrottleMs = c.PollIntervalMs
	}
	c.ThrottleMs = clamp(c.ThrottleMs, 0, 60_000)

	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2
	}
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Emission is pushed to Observer.OnData on every content change.
type Emission struct {
	Rows      []model.Row
	Hash      string
	LatencyMs int64
}

// ErrorEvent is pushed to Observer.OnError once per query failure. The
// failure that reaches MaxRetries carries a *model.SubscriptionDegraded as
// Err instead of the query error; Degraded stays true until a success.
type ErrorEvent struct {
	Err        error
	RetryCount int
	Degraded   bool
}

// Observer receives a single subscription's emissions. Calls for one
// subscription are totally ordered and never overlap.
type Observer interface {
	OnData(Emission)
	OnError(ErrorEvent)
}

// Runner executes a built query and returns duck-typed rows, the same
// dependency internal/pivot.State uses, so a subscription and a pivot
// controller can share one implementation over one *store.Store.
type Runner interface {
	Run(built query.Built) ([]model.Row, error)
}

// Handle identifies a live subscription for Unsubscribe.
type Handle struct {
	id string
}

// Manager owns the set of live subscriptions and, optionally, an fsnotify
// watch on the backing database file that wakes ticks early.
type Manager struct {
	runner Runner
	dbPath string

	mu   sync.Mutex
	subs map[string]*subscription

	watcher *fsnotify.Watcher
}

// NewManager constructs a Manager bound to a Runner. dbPath, if non-empty,
// is watched with fsnotify so ticks can be woken early on write; failure
// to establish the watch is non-fatal, since polling alone still works.
func NewManager(runner Runner, dbPath string) *Manager {
	m := &Manager{runner: runner, dbPath: dbPath, subs: make(map[string]*subscription)}
	if dbPath != "" && dbPath != ":memory:" {
		if w, err := fsnotify.NewWatcher(); err == nil {
			if err := w.Add(dbPath); err == nil {
				m.watcher = w
				go m.watchLoop()
			} else {
				w.Close()
				logging.Get(logging.CategorySubscribe).Warn("failed to watch db file %s: %v", dbPath, err)
			}
		}
	}
	return m
}

func (m *Manager) watchLoop() {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				m.wakeAll()
			}
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (m *Manager) wakeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers a query under queryKey and starts its poll loop,
// returning a Handle for Unsubscribe.
func (m *Manager) Subscribe(queryKey string, built query.Built, cfg Config, obs Observer) Handle {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())

	s := &subscription{
		queryKey: queryKey,
		built:    built,
		cfg:      cfg,
		obs:      obs,
		runner:   m.runner,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.subs[id] = s
	m.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		s.run(ctx)
		return nil
	})
	s.group = &g

	return Handle{id: id}
}

// Unsubscribe cancels a subscription's loop and removes it. The next
// scheduled tick is cleared; Unsubscribe does not block on the loop's
// in-flight query.
func (m *Manager) Unsubscribe(h Handle) {
	m.mu.Lock()
	s, ok := m.subs[h.id]
	if ok {
		delete(m.subs, h.id)
	}
	m.mu.Unlock()
	if ok {
		s.cancel()
	}
}

// Close tears down every live subscription and the db-file watch.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
	if m.watcher != nil {
		m.watcher.Close()
	}
}

type subscription struct {
	queryKey string
	built    query.Built
	cfg      Config
	obs      Observer
	runner   Runner

	cancel context.CancelFunc
	wake   chan struct{}
	group  *errgroup.Group

	lastHash   string
	retries    int
	degraded   bool
	lastEmitAt time.Time
	recentLat  []int64 // rolling window for p95
}

const maxRecentLatencies = 20

func (s *subscription) run(ctx context.Context) {
	interval := time.Duration(s.cfg.PollIntervalMs) * time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.tick(ctx)
			timer.Reset(s.nextInterval())
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.nextInterval())
		}
	}
}

// nextInterval returns the base poll interval unless the subscription is
// currently backing off, in which case it returns the backoff delay.
func (s *subscription) nextInterval() time.Duration {
	if s.retries == 0 {
		return time.Duration(s.cfg.PollIntervalMs) * time.Millisecond
	}
	backoff := math.Pow(float64(s.cfg.BackoffBase), float64(s.retries))
	ms := backoff * float64(s.cfg.PollIntervalMs)
	maxMs := float64(s.cfg.PollIntervalMs) * 60
	if ms > maxMs {
		ms = maxMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *subscription) tick(ctx context.Context) {
	// Throttle: never emit more often than ThrottleMs, even if woken early
	// by the db-file watch.
	if !s.lastEmitAt.IsZero() && time.Since(s.lastEmitAt) < time.Duration(s.cfg.ThrottleMs)*time.Millisecond {
		return
	}

	start := time.Now()
	rows, err := s.runner.Run(s.built)
	latency := time.Since(start)
	s.recordLatency(latency.Milliseconds())

	if err != nil {
		s.onFailure(err)
		return
	}

	s.retries = 0
	wasDegraded := s.degraded
	s.degraded = false
	if wasDegraded {
		logging.Subscribe("subscription %q recovered", s.queryKey)
	}

	hash := hashRows(rows)
	if hash == s.lastHash {
		return
	}
	s.lastHash = hash
	s.lastEmitAt = time.Now()

	s.obs.OnData(Emission{Rows: rows, Hash: hash, LatencyMs: latency.Milliseconds()})
}

func (s *subscription) onFailure(err error) {
	s.retries++
	if s.retries >= s.cfg.MaxRetries && !s.degraded {
		s.degraded = true
		degradedErr := &model.SubscriptionDegraded{QueryKey: s.queryKey, RetryCount: s.retries, LastErr: err}
		s.obs.OnError(ErrorEvent{Err: degradedErr, RetryCount: s.retries, Degraded: true})
		logging.Get(logging.CategorySubscribe).Warn("subscription %q degraded: %v", s.queryKey, degradedErr)
		return
	}
	s.obs.OnError(ErrorEvent{Err: err, RetryCount: s.retries, Degraded: s.degraded})
}

func (s *subscription) recordLatency(ms int64) {
	s.recentLat = append(s.recentLat, ms)
	if len(s.recentLat) > maxRecentLatencies {
		s.recentLat = s.recentLat[1:]
	}
}

// Quality derives connection-quality status from the rolling p95 latency
// and the retry counter.
func (s *subscription) Quality() Quality {
	switch {
	case s.degraded:
		return QualityDisconnected
	case s.retries > 0:
		return QualityDegraded
	case p95(s.recentLat) > int64(s.cfg.PollIntervalMs):
		return QualityDegraded
	default:
		return QualityHealthy
	}
}

func p95(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]int64(nil), samples...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// hashRows computes a stable hash over the full ordered row list including
// counts; hashing only a subset would risk missing an update that changes a
// count but not a facet value.
func hashRows(rows []model.Row) string {
	type encoded struct {
		Values map[string]string
		Count  int64
	}
	out := make([]encoded, 0, len(rows))
	for _, r := range rows {
		mr, ok := r.(model.MapRow)
		if ok {
			out = append(out, encoded{Values: mr.Values, Count: mr.Count})
			continue
		}
		out = append(out, encoded{Count: r.GetCount()})
	}
	b, _ := json.Marshal(out)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
