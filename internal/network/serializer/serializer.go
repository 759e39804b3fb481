package serializer

import (
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Serializer 抽象了网络层“对象 <-> 字节流”的序列化能力。
//
// 调用方通过接口注入具体实现，codec 不直接依赖某个 JSON 库。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象。
	//
	// v 通常为指针类型，用于接收解码结果。
	Unmarshal(data []byte, v any) error
}

const (
	NameJSON  = "json"
	NameSonic = "sonic"
)

// New 按名称返回序列化实现，空名称等同于 json。
func New(name string) (Serializer, error) {
	switch name {
	case "", NameJSON:
		return JSONSerializer{}, nil
	case NameSonic:
		return SonicSerializer{}, nil
	default:
		return nil, merr.WrapErrParameterInvalidMsg("unknown serializer %q", name)
	}
}
