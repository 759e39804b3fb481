//go:build linux

package device

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/retry"
)

// ioctl 请求号，见 <linux/uinput.h>。
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503 // _IOW('U', 3, struct uinput_setup)
	uiAbsSetup   = 0x401c5504 // _IOW('U', 4, struct uinput_abs_setup)
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567

	uinputMaxNameSize = 80
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [uinputMaxNameSize]byte
	FFEffectsMax uint32
}

type inputAbsinfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type uinputAbsSetup struct {
	Code    uint16
	_       [2]byte
	Absinfo inputAbsinfo
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = int(unsafe.Sizeof(inputEvent{}))

type uinputFactory struct {
	cfg     Config
	profile Profile
	serial  atomic.Uint64
}

var _ Factory = (*uinputFactory)(nil)

func newUinputFactory(cfg Config) (Factory, error) {
	if cfg.UinputPath == "" {
		cfg.UinputPath = DefaultConfig().UinputPath
	}
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	return &uinputFactory{cfg: cfg, profile: Xbox360Profile()}, nil
}

func (f *uinputFactory) Backend() string {
	return BackendUinput
}

func (f *uinputFactory) Create(ctx context.Context, identity uuid.UUID) (Device, error) {
	var fd int
	err := retry.Do(ctx, func() error {
		var err error
		fd, err = unix.Open(f.cfg.UinputPath, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			return nil
		}
		// 仅对瞬时错误重试；权限或路径错误立即返回。
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EBUSY) {
			return merr.WrapErrIoFailed(f.cfg.UinputPath, err)
		}
		return err
	}, retry.Attempts(3), retry.Sleep(10*time.Millisecond), retry.MaxSleepTime(40*time.Millisecond),
		retry.RetryErr(merr.IsRetryableErr))
	if err != nil {
		return nil, merr.WrapErrDeviceCreateFailed(identity, errors.Wrapf(err, "open %s", f.cfg.UinputPath))
	}

	if err := f.setup(fd); err != nil {
		_ = unix.Close(fd)
		return nil, merr.WrapErrDeviceCreateFailed(identity, err)
	}

	d := &uinputDevice{fd: fd, serial: f.serial.Inc()}
	log.Ctx(ctx).Debug("uinput device created",
		log.FieldClientID(identity),
		log.FieldDevice(d.serial))
	return d, nil
}

func (f *uinputFactory) setup(fd int) error {
	if err := unix.IoctlSetInt(fd, uiSetEvBit, int(EvKey)); err != nil {
		return errors.Wrap(err, "UI_SET_EVBIT EV_KEY")
	}
	for _, key := range f.profile.Keys {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(key)); err != nil {
			return errors.Wrapf(err, "UI_SET_KEYBIT %d", key)
		}
	}

	if err := unix.IoctlSetInt(fd, uiSetEvBit, int(EvAbs)); err != nil {
		return errors.Wrap(err, "UI_SET_EVBIT EV_ABS")
	}
	for _, axis := range f.profile.Axes {
		if err := unix.IoctlSetInt(fd, uiSetAbsBit, int(axis.Code)); err != nil {
			return errors.Wrapf(err, "UI_SET_ABSBIT %d", axis.Code)
		}
		abs := uinputAbsSetup{
			Code: axis.Code,
			Absinfo: inputAbsinfo{
				Minimum: axis.Minimum,
				Maximum: axis.Maximum,
				Fuzz:    axis.Fuzz,
				Flat:    axis.Flat,
			},
		}
		if err := ioctlPtr(fd, uiAbsSetup, unsafe.Pointer(&abs)); err != nil {
			return errors.Wrapf(err, "UI_ABS_SETUP %d", axis.Code)
		}
	}

	setup := uinputSetup{
		ID: inputID{
			Bustype: BusUSB,
			Vendor:  f.profile.Vendor,
			Product: f.profile.Product,
			Version: f.profile.Version,
		},
	}
	copy(setup.Name[:uinputMaxNameSize-1], f.cfg.Name)
	if err := ioctlPtr(fd, uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		return errors.Wrap(err, "UI_DEV_SETUP")
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return errors.Wrap(err, "UI_DEV_CREATE")
	}
	return nil
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

type uinputDevice struct {
	serial uint64

	mu     sync.Mutex
	fd     int
	closed bool
}

var _ Device = (*uinputDevice)(nil)

func (d *uinputDevice) Serial() uint64 {
	return d.serial
}

func (d *uinputDevice) EmitButton(code uint16, value int32) error {
	return d.emit("btn", EvKey, code, value)
}

func (d *uinputDevice) EmitAxis(code uint16, value int32) error {
	return d.emit("axis", EvAbs, code, value)
}

// emit 写入一条事件并紧跟 SYN_REPORT，两者在一次 write 中提交。
func (d *uinputDevice) emit(op string, typ, code uint16, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return merr.WrapErrDeviceClosed(d.serial)
	}

	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		tv = unix.Timeval{}
	}
	events := [2]inputEvent{
		{Time: tv, Type: typ, Code: code, Value: value},
		{Time: tv, Type: EvSyn, Code: SynReport},
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&events[0])), len(events)*inputEventSize)

	n, err := unix.Write(d.fd, buf)
	if err != nil {
		return merr.WrapErrDeviceEmitFailed(op, code, err)
	}
	if n != len(buf) {
		return merr.WrapErrDeviceEmitFailed(op, code, errors.Newf("short write %d/%d", n, len(buf)))
	}
	return nil
}

func (d *uinputDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	destroyErr := unix.IoctlSetInt(d.fd, uiDevDestroy, 0)
	if destroyErr != nil {
		log.Warn("UI_DEV_DESTROY failed", log.FieldDevice(d.serial), zap.Error(destroyErr))
	}
	closeErr := unix.Close(d.fd)
	return merr.Combine(destroyErr, closeErr)
}
