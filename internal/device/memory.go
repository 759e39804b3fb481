package device

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Event 为内存后端记录下的一条输入事件。
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// MemoryFactory 是不接触内核的设备后端。
//
// 用途：
//   - 在没有 /dev/uinput 的主机上试运行服务；
//   - 在测试中观察设备身份、事件顺序，并注入创建/投递失败。
type MemoryFactory struct {
	serial atomic.Uint64

	mu         sync.Mutex
	createErr  error
	devices    []*MemoryDevice
	createHook func(identity uuid.UUID)
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory 创建一个内存设备工厂。
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// Backend 实现 Factory.Backend。
func (f *MemoryFactory) Backend() string {
	return BackendMemory
}

// Create 实现 Factory.Create。
func (f *MemoryFactory) Create(ctx context.Context, identity uuid.UUID) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	createErr, hook := f.createErr, f.createHook
	f.mu.Unlock()

	if hook != nil {
		hook(identity)
	}
	if createErr != nil {
		return nil, merr.WrapErrDeviceCreateFailed(identity, createErr)
	}

	d := &MemoryDevice{
		serial:   f.serial.Inc(),
		identity: identity,
	}
	f.mu.Lock()
	f.devices = append(f.devices, d)
	f.mu.Unlock()
	return d, nil
}

// FailCreate 使后续 Create 返回 err；err 为 nil 时恢复正常。
func (f *MemoryFactory) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// OnCreate 注册在每次 Create 开始时调用的钩子。
func (f *MemoryFactory) OnCreate(hook func(identity uuid.UUID)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createHook = hook
}

// Created 返回累计创建成功的设备数量。
func (f *MemoryFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}

// Devices 返回已创建设备的快照，按创建顺序排列。
func (f *MemoryFactory) Devices() []*MemoryDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MemoryDevice, len(f.devices))
	copy(out, f.devices)
	return out
}

// MemoryDevice 按顺序记录收到的事件。
type MemoryDevice struct {
	serial   uint64
	identity uuid.UUID

	mu      sync.Mutex
	events  []Event
	emitErr error
	closed  bool
}

var _ Device = (*MemoryDevice)(nil)

// Serial 实现 Device.Serial。
func (d *MemoryDevice) Serial() uint64 {
	return d.serial
}

// Identity 返回创建该设备的客户端标识。
func (d *MemoryDevice) Identity() uuid.UUID {
	return d.identity
}

// EmitButton 实现 Device.EmitButton。
func (d *MemoryDevice) EmitButton(code uint16, value int32) error {
	return d.emit("btn", Event{Type: EvKey, Code: code, Value: value})
}

// EmitAxis 实现 Device.EmitAxis。
func (d *MemoryDevice) EmitAxis(code uint16, value int32) error {
	return d.emit("axis", Event{Type: EvAbs, Code: code, Value: value})
}

func (d *MemoryDevice) emit(op string, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return merr.WrapErrDeviceClosed(d.serial)
	}
	if d.emitErr != nil {
		return merr.WrapErrDeviceEmitFailed(op, ev.Code, d.emitErr)
	}
	d.events = append(d.events, ev)
	return nil
}

// Close 实现 Device.Close。
func (d *MemoryDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed 返回设备是否已关闭。
func (d *MemoryDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// FailEmit 使后续投递返回 err；err 为 nil 时恢复正常。
func (d *MemoryDevice) FailEmit(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitErr = err
}

// Events 返回已记录事件的快照。
func (d *MemoryDevice) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}
