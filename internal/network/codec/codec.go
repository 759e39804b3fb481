package codec

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/ItzDerock/virtual-gamepads/internal/network/serializer"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Kind 为消息类型。
type Kind string

const (
	KindPing   Kind = "ping"
	KindButton Kind = "btn"
	KindAxis   Kind = "axis"
	KindPong   Kind = "pong"
)

// 对端可见的错误消息，属于线上协议的一部分，不可随意修改。
const (
	ErrMsgInvalidClientID = "invalid client_id"
	ErrMsgLimitReached    = "maximum client limit reached"
	ErrMsgDeviceCreate    = "failed to create virtual device"
	ErrMsgSessionExpired  = "session expired"
)

// Message 为一条已校验的入站消息。
//
// Kind 为 KindPing 时 Code/Value 恒为 0。
type Message struct {
	Kind  Kind
	Code  uint16
	Value int32
}

// Reply 为出站消息，Kind 与 Error 二选一。
type Reply struct {
	Kind  Kind   `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// Request 为客户端发出的消息。
type Request struct {
	Kind  Kind    `json:"kind"`
	Code  *uint16 `json:"code,omitempty"`
	Value *int32  `json:"value,omitempty"`
}

// PingRequest 返回心跳请求。
func PingRequest() Request {
	return Request{Kind: KindPing}
}

// ButtonRequest 返回按键请求。
func ButtonRequest(code uint16, value int32) Request {
	return Request{Kind: KindButton, Code: &code, Value: &value}
}

// AxisRequest 返回轴请求。
func AxisRequest(code uint16, value int32) Request {
	return Request{Kind: KindAxis, Code: &code, Value: &value}
}

// Pong 返回心跳应答。
func Pong() Reply {
	return Reply{Kind: KindPong}
}

// ErrorReply 返回携带错误信息的应答。
func ErrorReply(msg string) Reply {
	return Reply{Error: msg}
}

// ReplyForError 将准入/会话阶段的错误映射为对端可见的错误应答。
// 无对应协议消息的错误返回 false。
func ReplyForError(err error) (Reply, bool) {
	switch {
	case err == nil:
		return Reply{}, false
	case errors.Is(err, merr.ErrParameterInvalid), errors.Is(err, merr.ErrParameterMissing):
		return ErrorReply(ErrMsgInvalidClientID), true
	case errors.Is(err, merr.ErrSessionLimitExceeded):
		return ErrorReply(ErrMsgLimitReached), true
	case errors.Is(err, merr.ErrDeviceCreateFailed), errors.Is(err, merr.ErrDeviceUnsupported):
		return ErrorReply(ErrMsgDeviceCreate), true
	case errors.Is(err, merr.ErrSessionExpired):
		return ErrorReply(ErrMsgSessionExpired), true
	default:
		return Reply{}, false
	}
}

// Codec 负责入站消息的解码校验与出站消息的编码。
//
// 入站格式（每条 WebSocket 文本消息一个 JSON 对象）：
//
//	{"kind":"ping"}
//	{"kind":"btn",  "code": <uint16>, "value": <int32>}
//	{"kind":"axis", "code": <uint16>, "value": <int32>}
type Codec interface {
	// Decode 解码并校验一条入站消息。
	//
	// 失败时返回 ErrProtocolDecode（非法 JSON、字段缺失或越界）
	// 或 ErrProtocolUnknownKind（未知的 kind）。
	Decode(data []byte) (*Message, error)

	// Encode 编码一条出站消息。
	Encode(v any) ([]byte, error)

	// DecodeReply 解码服务器回复，供客户端使用。
	DecodeReply(data []byte) (*Reply, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Serializer serializer.Serializer
}

type codec struct {
	serializer serializer.Serializer
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterMissing("serializer")
	}
	return &codec{serializer: opts.Serializer}, nil
}

type wireMessage struct {
	Kind  string `json:"kind"`
	Code  *int64 `json:"code"`
	Value *int64 `json:"value"`
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(data []byte) (*Message, error) {
	var wm wireMessage
	if err := c.serializer.Unmarshal(data, &wm); err != nil {
		return nil, merr.WrapErrProtocolDecode(err)
	}

	switch Kind(wm.Kind) {
	case KindPing:
		return &Message{Kind: KindPing}, nil
	case KindButton, KindAxis:
		if wm.Code == nil || wm.Value == nil {
			return nil, merr.WrapErrProtocolDecode(nil, "missing code or value for kind "+wm.Kind)
		}
		if *wm.Code < 0 || *wm.Code > math.MaxUint16 {
			return nil, merr.WrapErrProtocolDecode(nil, "code out of uint16 range")
		}
		if *wm.Value < math.MinInt32 || *wm.Value > math.MaxInt32 {
			return nil, merr.WrapErrProtocolDecode(nil, "value out of int32 range")
		}
		return &Message{
			Kind:  Kind(wm.Kind),
			Code:  uint16(*wm.Code),
			Value: int32(*wm.Value),
		}, nil
	default:
		return nil, merr.WrapErrProtocolUnknownKind(wm.Kind)
	}
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, merr.WrapErrParameterMissing("reply")
	}
	return c.serializer.Marshal(v)
}

// DecodeReply 实现 Codec.DecodeReply。
func (c *codec) DecodeReply(data []byte) (*Reply, error) {
	var r Reply
	if err := c.serializer.Unmarshal(data, &r); err != nil {
		return nil, merr.WrapErrProtocolDecode(err)
	}
	if r.Kind == "" && r.Error == "" {
		return nil, merr.WrapErrProtocolDecode(nil, "empty reply")
	}
	return &r, nil
}
