package router

import (
	"context"

	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Sender 由连接实现，用于在 Handler 内部写出回复。
type Sender interface {
	Send(v any) error
}

// Handler 是 Active 状态下处理单条消息的函数签名。
//
// 说明：
//   - sender：当前连接，用于发送回复（例如 pong）；
//   - sess  ：连接绑定的会话；
//   - msg   ：已校验的入站消息；
//   - 返回非 nil 错误时由接入层决定是否结束连接。
type Handler func(ctx context.Context, sender Sender, sess *session.Session, msg *codec.Message) error

// Router 维护消息类型到 Handler 的映射。
//
// 典型调用链（服务器侧）：
//  1. 接入层读取一条 WebSocket 消息，经 Codec 解码为 Message；
//  2. 调用 Router.Handle(ctx, sender, sess, msg)；
//  3. Router 根据 msg.Kind 找到 Handler 并执行。
type Router interface {
	// Register 为 kind 注册处理函数；同一 kind 不允许重复注册。
	Register(kind codec.Kind, h Handler) error

	// Handle 分发一条消息；未注册的 kind 返回 ErrProtocolUnknownKind。
	Handle(ctx context.Context, sender Sender, sess *session.Session, msg *codec.Message) error
}

// defaultRouter 是 Router 接口的基础实现。
//
// 路由表只在启动阶段注册，运行期只读，因此无需加锁。
type defaultRouter struct {
	routes map[codec.Kind]Handler
}

// 编译期断言：确保 defaultRouter 实现了 Router 接口。
var _ Router = (*defaultRouter)(nil)

// New 创建一个空的 Router 实例。
func New() Router {
	return &defaultRouter{
		routes: make(map[codec.Kind]Handler),
	}
}

// Register 实现 Router.Register。
func (r *defaultRouter) Register(kind codec.Kind, h Handler) error {
	if kind == "" {
		return merr.WrapErrParameterMissing("kind")
	}
	if h == nil {
		return merr.WrapErrParameterInvalidMsg("handler is nil for kind=%s", kind)
	}
	if _, exists := r.routes[kind]; exists {
		return merr.WrapErrParameterInvalidMsg("kind=%s already registered", kind)
	}
	r.routes[kind] = h
	return nil
}

// Handle 实现 Router.Handle。
func (r *defaultRouter) Handle(ctx context.Context, sender Sender, sess *session.Session, msg *codec.Message) error {
	if sess == nil {
		return merr.WrapErrParameterMissing("session")
	}
	if msg == nil {
		return merr.WrapErrParameterMissing("message")
	}

	h, ok := r.routes[msg.Kind]
	if !ok {
		return merr.WrapErrProtocolUnknownKind(string(msg.Kind))
	}
	return h(ctx, sender, sess, msg)
}
