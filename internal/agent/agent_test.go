package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/client"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	readings []Reading
	i        int
	err      error
}

func (s *scriptedSource) Read(context.Context) (Reading, error) {
	if s.err != nil {
		return Reading{}, s.err
	}
	r := s.readings[s.i%len(s.readings)]
	s.i++
	return r, nil
}

func TestSampler_NetworkDeltas(t *testing.T) {
	src := &scriptedSource{readings: []Reading{
		{NetworkIn: 1000, NetworkOut: 500},
		{NetworkIn: 1600, NetworkOut: 900},
		{NetworkIn: 100, NetworkOut: 50}, // counters reset
	}}
	s := NewSampler(src)
	ctx := context.Background()

	r, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Zero(t, r.NetworkIn)
	assert.Zero(t, r.NetworkOut)

	r, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), r.NetworkIn)
	assert.Equal(t, uint64(400), r.NetworkOut)

	r, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r.NetworkIn)
	assert.Equal(t, uint64(50), r.NetworkOut)
}

type recorder struct {
	mu    sync.Mutex
	sent  []store.Sample
	addrs []string
	resp  string
	err   error
}

func (r *recorder) send(_ context.Context, addr string, s store.Sample) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	r.addrs = append(r.addrs, addr)
	return r.resp, r.err
}

func identity(cfg *config.ClientConfig) Identity {
	return func() (*config.ClientConfig, error) { return cfg, nil }
}

func TestTick_SendsSample(t *testing.T) {
	src := &scriptedSource{readings: []Reading{{RAMUsed: 10, RAMTotal: 20, CPUUsage: 0.4, Processes: 7}}}
	rec := &recorder{resp: "Data inserted"}
	cfg := &config.ClientConfig{DeviceID: "dev-1", DeviceName: "laptop", ServerAddr: "10.0.0.1:51347"}

	a := New(NewSampler(src), identity(cfg), rec.send, time.Minute, logger.NewBufferLogger())
	a.now = func() time.Time { return time.Unix(1234, 0) }

	require.NoError(t, a.Tick(context.Background()))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, store.Sample{
		DeviceID: "dev-1", DeviceName: "laptop",
		RAMUsed: 10, RAMTotal: 20, CPUUsage: 0.4, Processes: 7,
		Time: 1234,
	}, rec.sent[0])
	assert.Equal(t, []string{"10.0.0.1:51347"}, rec.addrs)
}

func TestTick_Errors(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{readings: []Reading{{}}}

	t.Run("not set up", func(t *testing.T) {
		a := New(NewSampler(src), identity(config.DefaultClientConfig()), (&recorder{}).send, time.Minute, nil)
		assert.ErrorContains(t, a.Tick(ctx), "fleetwatch setup")
	})

	t.Run("dropped is not an error", func(t *testing.T) {
		rec := &recorder{err: client.ErrNoResponse}
		a := New(NewSampler(src), identity(&config.ClientConfig{DeviceID: "d", ServerAddr: "x"}), rec.send, time.Minute, nil)
		assert.NoError(t, a.Tick(ctx))
	})

	t.Run("network failure surfaces", func(t *testing.T) {
		rec := &recorder{err: errors.New("connection refused")}
		a := New(NewSampler(src), identity(&config.ClientConfig{DeviceID: "d", ServerAddr: "x"}), rec.send, time.Minute, nil)
		assert.ErrorContains(t, a.Tick(ctx), "connection refused")
	})

	t.Run("sampling failure surfaces", func(t *testing.T) {
		bad := &scriptedSource{err: errors.New("no /proc")}
		a := New(NewSampler(bad), identity(&config.ClientConfig{DeviceID: "d", ServerAddr: "x"}), (&recorder{}).send, time.Minute, nil)
		assert.Error(t, a.Tick(ctx))
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &scriptedSource{readings: []Reading{{}}}
	rec := &recorder{resp: "Data inserted"}
	log := logger.NewBufferLogger()
	a := New(NewSampler(src), identity(&config.ClientConfig{DeviceID: "d", ServerAddr: "x"}), rec.send, 10*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sent) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
