package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/fleetwatch/internal/client"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/protocol"
	"github.com/rileyhilliard/fleetwatch/internal/ratelimit"
	"github.com/rileyhilliard/fleetwatch/internal/registry"
	"github.com/rileyhilliard/fleetwatch/internal/store"
	storetesting "github.com/rileyhilliard/fleetwatch/internal/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminRaw = "admin-device"

var (
	loopback = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	remote   = &net.TCPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 40000}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	srv     *Server
	store   *storetesting.FakeStore
	persist *registry.MemoryPersister
	reg     *registry.Registry
	clock   *fakeClock
	log     *logger.BufferLogger
}

func newHarness(t *testing.T, registered ...string) *harness {
	t.Helper()
	h := &harness{
		store: storetesting.NewFakeStore(),
		persist: registry.NewMemoryPersister(&config.ServerConfig{
			RegisteredDeviceIDs: registered,
			AdminIDs:            []string{registry.AdminDigest(adminRaw)},
		}),
		clock: newFakeClock(),
		log:   logger.NewBufferLogger(),
	}
	reg, err := registry.Open(h.persist)
	require.NoError(t, err)
	h.reg = reg

	ids := 0
	h.srv = New(h.store, reg, Options{
		Listen:           "127.0.0.1:0",
		MinInputInterval: ratelimit.DefaultInterval,
		Policy:           ratelimit.ChargeBeforeRegistration,
		Logger:           h.log,
		Clock:            h.clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("00000000-0000-0000-0000-%012d", ids)
		},
	})
	return h
}

func frame(t *testing.T, cmd protocol.Command, payload any) protocol.Frame {
	t.Helper()
	wire, err := protocol.Encode(cmd, payload)
	require.NoError(t, err)
	f, err := protocol.Decode(wire)
	require.NoError(t, err)
	return f
}

func inputPayload(id string) client.SamplePayload {
	return client.SamplePayload{
		DeviceID:   id,
		DeviceName: "laptop",
		RAMUsed:    4 << 30,
		RAMTotal:   16 << 30,
		CPUUsage:   0.3,
		Processes:  120,
		NetworkIn:  100,
		NetworkOut: 200,
		Time:       0,
	}
}

func digest() map[string]string {
	return map[string]string{protocol.KeyDeviceID: registry.AdminDigest(adminRaw)}
}

func TestInput_StampsServerTime(t *testing.T) {
	h := newHarness(t, "dev-1")
	ctx := context.Background()

	res := h.srv.Dispatch(ctx, frame(t, protocol.Input, inputPayload("dev-1")), loopback)
	assert.Equal(t, reply(RespInserted), res)

	rows, err := h.store.SamplesSince(ctx, "dev-1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, h.clock.Now().Unix(), rows[0].Time, "client time is overwritten")
	assert.Equal(t, "laptop", rows[0].DeviceName)
	assert.Equal(t, int64(4<<30), rows[0].RAMUsed)
	assert.InDelta(t, 0.3, rows[0].CPUUsage, 1e-9)
	assert.Equal(t, int64(120), rows[0].Processes)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.srv.Metrics().SamplesInserted))
}

func TestInput_RateLimit(t *testing.T) {
	tests := []struct {
		name    string
		gap     time.Duration
		want    Result
		wantRow int
	}{
		{name: "109 seconds apart is dropped", gap: 109 * time.Second, want: drop, wantRow: 1},
		{name: "111 seconds apart is accepted", gap: 111 * time.Second, want: reply(RespInserted), wantRow: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "dev-1")
			ctx := context.Background()
			f := frame(t, protocol.Input, inputPayload("dev-1"))

			require.Equal(t, reply(RespInserted), h.srv.Dispatch(ctx, f, loopback))
			h.clock.Advance(tt.gap)
			assert.Equal(t, tt.want, h.srv.Dispatch(ctx, f, loopback))
			assert.Len(t, h.store.All(), tt.wantRow)
		})
	}
}

func TestInput_Unregistered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := frame(t, protocol.Input, inputPayload("ghost"))

	assert.Equal(t, drop, h.srv.Dispatch(ctx, f, loopback))
	assert.Empty(t, h.store.All())

	// The rejected frame still consumed the slot.
	require.NoError(t, h.reg.Register("ghost"))
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, drop, h.srv.Dispatch(ctx, f, loopback))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.srv.Metrics().RateLimited))

	h.clock.Advance(110 * time.Second)
	assert.Equal(t, reply(RespInserted), h.srv.Dispatch(ctx, f, loopback))
}

func TestInput_BadFields(t *testing.T) {
	h := newHarness(t, "dev-1")
	ctx := context.Background()

	noID := frame(t, protocol.Input, map[string]any{protocol.KeyRAMUsed: 1})
	assert.Equal(t, drop, h.srv.Dispatch(ctx, noID, loopback))

	badRAM := frame(t, protocol.Input, map[string]any{protocol.KeyDeviceID: "dev-1", protocol.KeyRAMUsed: "lots"})
	assert.Equal(t, reply(RespInsertFailed), h.srv.Dispatch(ctx, badRAM, loopback))
	assert.Empty(t, h.store.All())
}

func TestInput_StoreFailure(t *testing.T) {
	h := newHarness(t, "dev-1")
	h.store.InsertErr = errors.New("disk full")

	res := h.srv.Dispatch(context.Background(), frame(t, protocol.Input, inputPayload("dev-1")), loopback)
	assert.Equal(t, reply(RespInsertFailed), res)
	assert.True(t, h.log.HasLevel("error"))
}

func TestAdminCommandsDenyNonAdmins(t *testing.T) {
	h := newHarness(t, "dev-1")
	ctx := context.Background()
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-1", DeviceName: "x", Time: 1}))

	payloads := []any{
		map[string]any{},
		map[string]any{protocol.KeyDeviceID: adminRaw},
		map[string]any{protocol.KeyDeviceID: 42},
		map[string]any{protocol.KeyDeviceID: registry.AdminDigest("someone-else"), protocol.KeyRemovedDeviceID: "dev-1"},
		map[string]any{protocol.KeyDeviceID: "dev-1", protocol.KeyRenamedDeviceID: "dev-1", protocol.KeyDeviceName: "pwned"},
	}

	for _, cmd := range []protocol.Command{protocol.List, protocol.Remove, protocol.AdminRename, protocol.UpdateServer} {
		for i, p := range payloads {
			t.Run(fmt.Sprintf("%s/%d", cmd, i), func(t *testing.T) {
				assert.Equal(t, reply(RespDenied), h.srv.Dispatch(ctx, frame(t, cmd, p), loopback))
			})
		}
	}

	assert.Len(t, h.store.All(), 1, "nothing was removed")
	name, err := h.store.DeviceName(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "x", name, "nothing was renamed")
	assert.True(t, h.reg.IsRegistered("dev-1"))
}

func TestList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, reply(RespNoDevices), h.srv.Dispatch(ctx, frame(t, protocol.List, digest()), loopback))

	for _, s := range []store.Sample{
		{DeviceID: "b-id", DeviceName: "beta", Time: 1},
		{DeviceID: "a-id", DeviceName: "alpha", Time: 1},
		{DeviceID: adminRaw, DeviceName: "admin box", Time: 1},
	} {
		require.NoError(t, h.store.InsertSample(ctx, s))
	}

	res := h.srv.Dispatch(ctx, frame(t, protocol.List, digest()), loopback)
	assert.Equal(t, reply("alpha: a-id\nbeta: b-id"), res, "admins are excluded")
}

func TestRemove(t *testing.T) {
	h := newHarness(t, "dev-y", "dev-z")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-y", Time: int64(i)}))
	}
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-z", Time: 1}))

	p := digest()
	p[protocol.KeyRemovedDeviceID] = "dev-y"
	res := h.srv.Dispatch(ctx, frame(t, protocol.Remove, p), loopback)
	assert.Equal(t, reply("Removed dev-y (3 samples deleted)"), res)

	ids, err := h.store.DistinctDeviceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-z"}, ids)

	rows, err := h.store.SamplesSince(ctx, "dev-y", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.False(t, h.reg.IsRegistered("dev-y"))
	assert.Equal(t, []string{"dev-z"}, h.persist.Stored().RegisteredDeviceIDs, "registry persisted")

	res = h.srv.Dispatch(ctx, frame(t, protocol.Remove, p), loopback)
	assert.Equal(t, reply("Device dev-y not found"), res)

	delete(p, protocol.KeyRemovedDeviceID)
	assert.Equal(t, drop, h.srv.Dispatch(ctx, frame(t, protocol.Remove, p), loopback))
}

func TestRename(t *testing.T) {
	h := newHarness(t, "dev-1")
	ctx := context.Background()
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-1", DeviceName: "old", Time: 1}))
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-1", DeviceName: "old", Time: 2}))

	res := h.srv.Dispatch(ctx, frame(t, protocol.Rename, map[string]string{
		protocol.KeyDeviceID: "dev-1", protocol.KeyDeviceName: "desk",
	}), remote)
	assert.Equal(t, reply("Renamed dev-1 to desk"), res)
	for _, s := range h.store.All() {
		assert.Equal(t, "desk", s.DeviceName)
	}

	res = h.srv.Dispatch(ctx, frame(t, protocol.Rename, map[string]string{
		protocol.KeyDeviceID: "nobody", protocol.KeyDeviceName: "x",
	}), remote)
	assert.Equal(t, reply("No data found for device nobody"), res)

	res = h.srv.Dispatch(ctx, frame(t, protocol.Rename, map[string]string{protocol.KeyDeviceID: "dev-1"}), remote)
	assert.Equal(t, drop, res)
}

func TestAdminRename(t *testing.T) {
	h := newHarness(t, "dev-1")
	ctx := context.Background()
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "dev-1", DeviceName: "old", Time: 1}))

	p := digest()
	p[protocol.KeyRenamedDeviceID] = "dev-1"
	p[protocol.KeyDeviceName] = "server-room"

	res := h.srv.Dispatch(ctx, frame(t, protocol.AdminRename, p), remote)
	assert.Equal(t, reply("Renamed dev-1 to server-room"), res)

	name, err := h.store.DeviceName(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "server-room", name)
}

func TestSetup(t *testing.T) {
	h := newHarness(t, "00000000-0000-0000-0000-000000000001")
	ctx := context.Background()
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "00000000-0000-0000-0000-000000000002", Time: 1}))

	res := h.srv.Dispatch(ctx, frame(t, protocol.Setup, nil), remote)
	want := "00000000-0000-0000-0000-000000000003"
	assert.Equal(t, reply(want), res, "registry and store collisions are skipped")
	assert.True(t, h.reg.IsRegistered(want))
	assert.Contains(t, h.persist.Stored().RegisteredDeviceIDs, want)
}

func TestSetup_GivesUp(t *testing.T) {
	h := newHarness(t)
	h.srv.opts.NewID = func() string { return config.UnsetDeviceID }

	res := h.srv.Dispatch(context.Background(), frame(t, protocol.Setup, nil), remote)
	assert.Equal(t, reply(RespSetupFailed), res)
}

func TestUpdateServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.persist.Save(&config.ServerConfig{
		RegisteredDeviceIDs: []string{"added-offline"},
		AdminIDs:            []string{registry.AdminDigest(adminRaw)},
	}))
	assert.False(t, h.reg.IsRegistered("added-offline"))

	res := h.srv.Dispatch(ctx, frame(t, protocol.UpdateServer, digest()), remote)
	assert.Equal(t, reply(RespReloaded), res)
	assert.True(t, h.reg.IsRegistered("added-offline"))
}

func TestExit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.srv.Dispatch(ctx, frame(t, protocol.Exit, nil), remote)
	assert.Equal(t, reply(RespDenied), res)
	assert.False(t, res.Stop)

	assert.Equal(t, reply(RespDenied), h.srv.Dispatch(ctx, frame(t, protocol.Exit, nil), nil))

	res = h.srv.Dispatch(ctx, frame(t, protocol.Exit, nil), loopback)
	assert.True(t, res.Stop)
	assert.Equal(t, RespStopping, res.Body)
}

func TestUnrecognizedIsDropped(t *testing.T) {
	h := newHarness(t)
	res := h.srv.Dispatch(context.Background(), protocol.Frame{Command: protocol.Unrecognized}, loopback)
	assert.Equal(t, drop, res)
}

func TestPrepare(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.InsertSample(ctx, store.Sample{DeviceID: "legacy", Time: 1}))

	require.NoError(t, h.srv.Prepare(ctx))
	assert.True(t, h.reg.IsRegistered("legacy"))
	assert.False(t, h.persist.Stored().FirstRun)
}

func TestOptionsFromSettings(t *testing.T) {
	s := config.DefaultSettings().Server
	o := OptionsFromSettings(s)
	assert.Equal(t, ratelimit.ChargeBeforeRegistration, o.Policy)
	assert.Equal(t, 110*time.Second, o.MinInputInterval)

	s.ChargeUnregistered = false
	assert.Equal(t, ratelimit.ChargeAfterRegistration, OptionsFromSettings(s).Policy)
}

func TestFormatDeviceList(t *testing.T) {
	assert.Equal(t, "a: 1\nb: 2", FormatDeviceList([]store.Device{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}))
}

// serve runs the harness server on a loopback port and returns a client for it.
func serve(t *testing.T, h *harness) (*client.Client, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	addr, err := h.srv.Addr(ctx)
	require.NoError(t, err)
	return client.New(addr.String(), 2*time.Second), done
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t)
	cl, done := serve(t, h)
	ctx := context.Background()

	id, err := cl.Setup(ctx)
	require.NoError(t, err)
	assert.True(t, h.reg.IsRegistered(id))

	sample := store.Sample{DeviceID: id, DeviceName: "e2e", RAMUsed: 1, RAMTotal: 2, CPUUsage: 0.5, NetworkIn: 3, NetworkOut: 4}
	resp, err := cl.SendSample(ctx, sample)
	require.NoError(t, err)
	assert.Equal(t, RespInserted, resp)
	acceptedAt := h.clock.Now().Unix()

	h.clock.Advance(100 * time.Second)
	_, err = cl.SendSample(ctx, sample)
	assert.ErrorIs(t, err, client.ErrNoResponse, "too soon is a silent drop")

	rows, err := h.store.SamplesSince(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, acceptedAt, rows[0].Time)

	h.clock.Advance(11 * time.Second)
	resp, err = cl.SendSample(ctx, sample)
	require.NoError(t, err)
	assert.Equal(t, RespInserted, resp)

	listing, err := cl.List(ctx, adminRaw)
	require.NoError(t, err)
	assert.Equal(t, "e2e: "+id, listing)

	denied, err := cl.List(ctx, "not-an-admin")
	require.NoError(t, err)
	assert.Equal(t, RespDenied, denied)

	renamed, err := cl.AdminRename(ctx, adminRaw, id, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed "+id+" to renamed", renamed)

	removed, err := cl.Remove(ctx, adminRaw, id)
	require.NoError(t, err)
	assert.Equal(t, "Removed "+id+" (2 samples deleted)", removed)
	assert.False(t, h.reg.IsRegistered(id))

	ids, err := h.store.DistinctDeviceIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)

	bye, err := cl.Exit(ctx)
	require.NoError(t, err)
	assert.Equal(t, RespStopping, bye)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after EXIT")
	}
}

func TestMalformedFramesGetNoResponse(t *testing.T) {
	h := newHarness(t)
	cl, _ := serve(t, h)
	addr := cl.Addr()

	for _, raw := range []string{"garbage", "INPUT!@@@", "PING!e30=", "INPUT!" + strings.Repeat("A", protocol.MaxFrameSize)} {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		_, err = conn.Write([]byte(raw))
		require.NoError(t, err)
		conn.(*net.TCPConn).CloseWrite()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		assert.Zero(t, n, "frame %q should get no response", raw)
		conn.Close()
	}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(h.srv.Metrics().DecodeErrors) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServe_ContextCancelStops(t *testing.T) {
	h := newHarness(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	_, err = h.srv.Addr(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_AgainAfterStop(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.srv.Serve(ctx, ln) }()

		require.Eventually(t, func() bool {
			addr, err := h.srv.Addr(ctx)
			return err == nil && addr.String() == ln.Addr().String()
		}, 5*time.Second, 10*time.Millisecond)
		h.srv.Stop()

		select {
		case err := <-done:
			assert.NoError(t, err, "serve #%d", i+1)
		case <-time.After(5 * time.Second):
			t.Fatalf("serve #%d did not return after Stop", i+1)
		}
		cancel()
	}
}

func TestConcurrentInputsSameDevice(t *testing.T) {
	h := newHarness(t, "dev-1")
	cl, _ := serve(t, h)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cl.SendSample(ctx, store.Sample{DeviceID: "dev-1", CPUUsage: 0.1})
		}()
	}
	wg.Wait()

	assert.Len(t, h.store.All(), 1, "only one frame per interval is stored")
}
