// Package device 定义虚拟输入设备门面（Virtual Device Facade）。
//
// 会话层只依赖 Factory/Device 两个接口：
//   - Factory.Create 为一个客户端标识创建一个独占的虚拟设备；
//   - Device.EmitButton/EmitAxis 向操作系统输入子系统投递离散事件；
//   - Device.Close 销毁设备，可重复调用。
//
// 所有方法都可能失败，调用方不得假定成功，也不得因失败退出进程。
package device

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// 后端名称。
const (
	BackendUinput = "uinput"
	BackendMemory = "memory"
)

// Device 为一个虚拟输入设备实例。
type Device interface {
	// Serial 返回设备在进程内的唯一序号，可用于判断两次获取是否为同一实例。
	Serial() uint64

	// EmitButton 投递一次按键事件（EV_KEY），value 通常为 1 按下、0 释放。
	EmitButton(code uint16, value int32) error

	// EmitAxis 投递一次绝对轴事件（EV_ABS）。
	EmitAxis(code uint16, value int32) error

	// Close 销毁设备并释放底层资源。多次调用是安全的。
	Close() error
}

// Factory 负责创建虚拟设备。
type Factory interface {
	// Create 为 identity 创建一个新的虚拟设备。
	Create(ctx context.Context, identity uuid.UUID) (Device, error)

	// Backend 返回后端名称。
	Backend() string
}

// Config 描述设备后端配置。
type Config struct {
	// Backend 为后端名称，可选 uinput 或 memory。
	Backend string `mapstructure:"backend"`
	// Name 为设备对外展示的名称。
	Name string `mapstructure:"name"`
	// UinputPath 为 uinput 字符设备路径。
	UinputPath string `mapstructure:"uinput_path"`
}

// DefaultConfig 返回默认设备配置。
func DefaultConfig() Config {
	return Config{
		Backend:    BackendUinput,
		Name:       "Web Controller",
		UinputPath: "/dev/uinput",
	}
}

// NewFactory 根据配置创建对应后端的 Factory。
func NewFactory(cfg Config) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendUinput:
		return newUinputFactory(cfg)
	case BackendMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, merr.WrapErrDeviceUnsupported(cfg.Backend, "unknown device backend")
	}
}
