//go:build linux

package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

func TestUinputABI(t *testing.T) {
	assert.EqualValues(t, 92, unsafe.Sizeof(uinputSetup{}))
	assert.EqualValues(t, 28, unsafe.Sizeof(uinputAbsSetup{}))
	assert.EqualValues(t, 8, unsafe.Sizeof(inputID{}))
	assert.Equal(t, int(unsafe.Sizeof(unix.Timeval{}))+8, inputEventSize)
}

func TestUinputFactory_MissingNode(t *testing.T) {
	f, err := NewFactory(Config{
		Backend:    BackendUinput,
		UinputPath: filepath.Join(t.TempDir(), "uinput"),
	})
	require.NoError(t, err)

	_, err = f.Create(context.Background(), uuid.New())
	assert.ErrorIs(t, err, merr.ErrDeviceCreateFailed)
}

// 需要可写的 /dev/uinput，默认跳过。
func TestUinputFactory_Create(t *testing.T) {
	if os.Getenv("GAMEPAD_UINPUT_TEST") == "" {
		t.Skip("set GAMEPAD_UINPUT_TEST=1 to run against /dev/uinput")
	}
	f, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	d, err := f.Create(context.Background(), uuid.New())
	require.NoError(t, err)
	defer d.Close()

	assert.NoError(t, d.EmitButton(BtnSouth, 1))
	assert.NoError(t, d.EmitButton(BtnSouth, 0))
	assert.NoError(t, d.EmitAxis(AbsX, 1200))
	assert.NoError(t, d.Close())
	assert.ErrorIs(t, d.EmitAxis(AbsX, 0), merr.ErrDeviceClosed)
}
