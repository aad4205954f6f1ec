package subscribe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"isometry/internal/model"
	"isometry/internal/query"
)

type fakeRunner struct {
	mu    sync.Mutex
	rowsQ [][]model.Row
	errQ  []error
	calls int
}

func (f *fakeRunner) Run(query.Built) ([]model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errQ) {
		err = f.errQ[i]
	}
	var rows []model.Row
	if i < len(f.rowsQ) {
		rows = f.rowsQ[i]
	} else if len(f.rowsQ) > 0 {
		rows = f.rowsQ[len(f.rowsQ)-1]
	}
	return rows, err
}

type recordingObserver struct {
	mu     sync.Mutex
	data   []Emission
	errors []ErrorEvent
}

func (o *recordingObserver) OnData(e Emission) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, e)
}

func (o *recordingObserver) OnError(e ErrorEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, e)
}

func (o *recordingObserver) snapshot() ([]Emission, []ErrorEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Emission(nil), o.data...), append([]ErrorEvent(nil), o.errors...)
}

func TestSubscribe_EmitsOnContentChangeOnly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtimePollWait"))

	row1 := model.MapRow{Values: map[string]string{"folder": "Work"}, Count: 3}
	row2 := model.MapRow{Values: map[string]string{"folder": "Work"}, Count: 5}
	runner := &fakeRunner{rowsQ: [][]model.Row{{row1}, {row1}, {row2}}}
	obs := &recordingObserver{}

	mgr := NewManager(runner, "")
	h := mgr.Subscribe("q1", query.Built{SQL: "SELECT 1"}, Config{PollIntervalMs: 100, ThrottleMs: 0}, obs)

	require.Eventually(t, func() bool {
		data, _ := obs.snapshot()
		return len(data) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mgr.Unsubscribe(h)
	mgr.Close()

	data, _ := obs.snapshot()
	require.GreaterOrEqual(t, len(data), 2)
	require.NotEqual(t, data[0].Hash, data[len(data)-1].Hash)
}

func TestSubscribe_DegradesAfterMaxRetries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtimePollWait"))

	failErr := errors.New("connection refused")
	runner := &fakeRunner{errQ: []error{failErr, failErr, failErr}}
	obs := &recordingObserver{}

	mgr := NewManager(runner, "")
	h := mgr.Subscribe("q2", query.Built{SQL: "SELECT 1"}, Config{PollIntervalMs: 50, MaxRetries: 2, BackoffBase: 2}, obs)

	require.Eventually(t, func() bool {
		_, errs := obs.snapshot()
		for _, e := range errs {
			if e.Degraded {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	mgr.Unsubscribe(h)
	mgr.Close()
}

func TestConfig_NormalizeClampsAndDefaults(t *testing.T) {
	cfg := Config{}.normalize()
	require.Equal(t, 1000, cfg.PollIntervalMs)
	require.Equal(t, 1000, cfg.ThrottleMs)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 2, cfg.BackoffBase)

	cfg = Config{PollIntervalMs: 10, ThrottleMs: 100_000}.normalize()
	require.Equal(t, 100, cfg.PollIntervalMs)
	require.Equal(t, 60_000, cfg.ThrottleMs)
}
