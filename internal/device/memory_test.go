package device

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

func TestMemoryFactory_CreateAssignsDistinctSerials(t *testing.T) {
	f := NewMemoryFactory()
	a, err := f.Create(context.Background(), uuid.New())
	require.NoError(t, err)
	b, err := f.Create(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.NotEqual(t, a.Serial(), b.Serial())
	assert.Equal(t, 2, f.Created())
	assert.Equal(t, BackendMemory, f.Backend())
}

func TestMemoryFactory_FailCreate(t *testing.T) {
	f := NewMemoryFactory()
	f.FailCreate(errors.New("no uinput"))

	id := uuid.New()
	_, err := f.Create(context.Background(), id)
	assert.ErrorIs(t, err, merr.ErrDeviceCreateFailed)
	assert.Contains(t, err.Error(), id.String())
	assert.Equal(t, 0, f.Created())

	f.FailCreate(nil)
	_, err = f.Create(context.Background(), id)
	assert.NoError(t, err)
}

func TestMemoryFactory_CreateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryFactory().Create(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryDevice_RecordsInOrder(t *testing.T) {
	f := NewMemoryFactory()
	d, err := f.Create(context.Background(), uuid.New())
	require.NoError(t, err)

	require.NoError(t, d.EmitButton(BtnSouth, 1))
	require.NoError(t, d.EmitAxis(AbsX, -32768))
	require.NoError(t, d.EmitButton(BtnSouth, 0))

	md := f.Devices()[0]
	assert.Equal(t, []Event{
		{Type: EvKey, Code: BtnSouth, Value: 1},
		{Type: EvAbs, Code: AbsX, Value: -32768},
		{Type: EvKey, Code: BtnSouth, Value: 0},
	}, md.Events())
}

func TestMemoryDevice_FailEmitAndClose(t *testing.T) {
	f := NewMemoryFactory()
	d, err := f.Create(context.Background(), uuid.New())
	require.NoError(t, err)
	md := f.Devices()[0]

	md.FailEmit(errors.New("EBADF"))
	err = d.EmitAxis(AbsY, 5)
	assert.ErrorIs(t, err, merr.ErrDeviceEmitFailed)
	assert.Empty(t, md.Events())

	md.FailEmit(nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, md.Closed())
	assert.ErrorIs(t, d.EmitButton(BtnStart, 1), merr.ErrDeviceClosed)
}

func TestNewFactory(t *testing.T) {
	f, err := NewFactory(Config{Backend: "Memory"})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, f.Backend())

	_, err = NewFactory(Config{Backend: "hid"})
	assert.ErrorIs(t, err, merr.ErrDeviceUnsupported)
}

func TestXbox360Profile(t *testing.T) {
	p := Xbox360Profile()
	assert.Equal(t, uint16(0x045e), p.Vendor)
	assert.Equal(t, uint16(0x028e), p.Product)
	assert.ElementsMatch(t, []uint16{304, 305, 307, 308, 314, 315}, p.Keys)
	for _, axis := range p.Axes {
		assert.Equal(t, int32(-32768), axis.Minimum)
		assert.Equal(t, int32(32767), axis.Maximum)
	}
}
