package store_test

import (
	"context"
	"testing"

	"github.com/rileyhilliard/fleetwatch/internal/store"
	storetesting "github.com/rileyhilliard/fleetwatch/internal/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDevices(t *testing.T) {
	fake := storetesting.NewFakeStore(
		store.Sample{DeviceID: "a", DeviceName: "alpha", Time: 1},
		store.Sample{DeviceID: "b", DeviceName: "beta", Time: 1},
		store.Sample{DeviceID: "admin", DeviceName: "boss", Time: 1},
	)

	devices, err := store.ListDevices(context.Background(), fake, func(id string) bool { return id == "admin" })
	require.NoError(t, err)
	assert.Equal(t, []store.Device{{ID: "a", Name: "alpha"}, {ID: "b", Name: "beta"}}, devices)

	all, err := store.ListDevices(context.Background(), fake, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFakeStore_MatchesContract(t *testing.T) {
	ctx := context.Background()
	fake := storetesting.NewFakeStore()

	require.NoError(t, fake.InsertSample(ctx, store.Sample{DeviceID: "a", DeviceName: "x", Time: 20}))
	require.NoError(t, fake.InsertSample(ctx, store.Sample{DeviceID: "a", DeviceName: "x", Time: 10}))

	rows, err := fake.SamplesSince(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(10), rows[0].Time)

	_, err = fake.DeviceName(ctx, "b")
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := fake.DeleteAllFor(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, fake.All())
}
