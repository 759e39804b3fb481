package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Clock 返回当前时间，测试中可替换。
type Clock func() time.Time

// Session 绑定一个客户端标识与其独占的虚拟设备。
//
// 约定：
//   - identity 与 device 在创建后不可变，device 不会被替换；
//   - lastHeartbeat、evicted 以及所有设备投递都在 mu 保护下串行执行；
//   - 连接处理协程以阻塞方式加锁，Reaper 只使用 TryLock，锁被占用即视为活跃。
type Session struct {
	identity uuid.UUID
	device   device.Device
	clock    Clock

	mu            sync.Mutex
	lastHeartbeat time.Time
	evicted       bool
}

func newSession(identity uuid.UUID, dev device.Device, clock Clock) *Session {
	return &Session{
		identity:      identity,
		device:        dev,
		clock:         clock,
		lastHeartbeat: clock(),
	}
}

// Identity 返回客户端标识。
func (s *Session) Identity() uuid.UUID {
	return s.identity
}

// DeviceSerial 返回绑定设备的序号，同一会话在重连前后保持不变。
func (s *Session) DeviceSerial() uint64 {
	return s.device.Serial()
}

// LastHeartbeat 返回最近一次心跳时间。
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// Touch 刷新心跳时间。会话已被回收时返回 ErrSessionExpired。
func (s *Session) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return merr.WrapErrSessionExpired(s.identity)
	}
	s.lastHeartbeat = s.clock()
	return nil
}

// EmitButton 向设备投递按键事件。
func (s *Session) EmitButton(code uint16, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return merr.WrapErrSessionExpired(s.identity)
	}
	return s.device.EmitButton(code, value)
}

// EmitAxis 向设备投递轴事件。
func (s *Session) EmitAxis(code uint16, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return merr.WrapErrSessionExpired(s.identity)
	}
	return s.device.EmitAxis(code, value)
}

// Evicted 返回会话是否已从注册表移除。
func (s *Session) Evicted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// stale 判断会话是否超时，调用方必须持有 mu。
func (s *Session) stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.lastHeartbeat) >= timeout
}

// closeDevice 销毁设备。会话此时已被标记为 evicted，不会再有投递。
func (s *Session) closeDevice() error {
	return s.device.Close()
}
