package router

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/metrics"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// NewGamepadRouter 返回注册了 ping/btn/axis 的 Router。
func NewGamepadRouter() Router {
	r := New()
	// 注册失败只可能是编程错误。
	if err := r.Register(codec.KindPing, handlePing); err != nil {
		panic(err)
	}
	if err := r.Register(codec.KindButton, handleButton); err != nil {
		panic(err)
	}
	if err := r.Register(codec.KindAxis, handleAxis); err != nil {
		panic(err)
	}
	return r
}

// handlePing 先回复 pong，再刷新心跳。
func handlePing(ctx context.Context, sender Sender, sess *session.Session, _ *codec.Message) error {
	if err := sender.Send(codec.Pong()); err != nil {
		return err
	}
	return sess.Touch()
}

func handleButton(ctx context.Context, _ Sender, sess *session.Session, msg *codec.Message) error {
	return swallowEmitErr(ctx, "btn", msg, sess.EmitButton(msg.Code, msg.Value))
}

func handleAxis(ctx context.Context, _ Sender, sess *session.Session, msg *codec.Message) error {
	return swallowEmitErr(ctx, "axis", msg, sess.EmitAxis(msg.Code, msg.Value))
}

// swallowEmitErr 记录设备投递失败并吞掉错误；会话过期需要上抛以结束连接。
func swallowEmitErr(ctx context.Context, op string, msg *codec.Message, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, merr.ErrSessionExpired) {
		return err
	}
	metrics.DeviceErrors.WithLabelValues(op).Inc()
	log.Ctx(ctx).WithRateGroup("router.emit", 1, 30).RatedWarn(1, "failed to emit input event",
		zap.String("op", op),
		zap.Uint16("code", msg.Code),
		zap.Int32("value", msg.Value),
		zap.Error(err))
	return nil
}
