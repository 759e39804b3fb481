package acceptor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/ItzDerock/virtual-gamepads/internal/network"
	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/router"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/metrics"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// State 为单个连接的协议状态。
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// transitions 为合法的状态迁移表，Closed 为终态。
var transitions = map[State][]State{
	StateConnecting: {StateActive, StateClosed},
	StateActive:     {StateClosed},
}

func canTransit(from, to State) bool {
	return lo.Contains(transitions[from], to)
}

const closeGracePeriod = time.Second

// conn 驱动一条 WebSocket 连接的状态机。
//
//	Connecting: 校验客户端标识 -> 注册表准入 -> Active；任一失败回复错误后 -> Closed
//	Active    : 逐条读取消息 -> 解码 -> Router 分发；读失败或会话过期 -> Closed
//	Closed    : 终态，会话保留在注册表中等待重连或被 Reaper 回收
type conn struct {
	ctx      context.Context
	acceptor *BaseAcceptor
	ws       *websocket.Conn
	log.Binder

	state atomic.Int32
	sess  *session.Session

	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ router.Sender = (*conn)(nil)

func newConn(ctx context.Context, a *BaseAcceptor, ws *websocket.Conn) *conn {
	c := &conn{
		ctx:      ctx,
		acceptor: a,
		ws:       ws,
	}
	c.BindCtx(ctx)
	return c
}

// State 返回当前状态。
func (c *conn) State() State {
	return State(c.state.Load())
}

func (c *conn) transit(to State) error {
	for {
		from := c.State()
		if !canTransit(from, to) {
			return merr.WrapErrServiceInternal(fmt.Sprintf("invalid connection state transition %s -> %s", from, to))
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			c.Logger().Debug("connection state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to))
			return nil
		}
	}
}

func (c *conn) serve(rawID string) {
	sess, err := c.connect(rawID)
	if err != nil {
		c.reject(err)
		return
	}
	c.sess = sess
	if err := c.transit(StateActive); err != nil {
		// Acceptor.Close 已将连接关闭。
		return
	}

	metrics.ConnectionActive.Inc()
	defer metrics.ConnectionActive.Dec()

	cause := c.loop()
	c.close(cause)
}

// connect 处理 Connecting 状态：先校验标识格式，再访问注册表。
func (c *conn) connect(rawID string) (*session.Session, error) {
	if rawID == "" {
		return nil, merr.WrapErrParameterMissing(c.acceptor.cfg.IdentityParam)
	}
	identity, err := uuid.Parse(rawID)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("%s %q is not a valid uuid: %v", c.acceptor.cfg.IdentityParam, rawID, err)
	}

	c.ctx = log.WithFields(c.ctx, log.FieldClientID(identity))
	c.BindCtx(c.ctx)

	sess, created, err := c.acceptor.cfg.Sessions.GetOrCreate(c.ctx, identity)
	if err != nil {
		return nil, err
	}
	c.ctx = log.WithFields(c.ctx, log.FieldDevice(sess.DeviceSerial()))
	c.BindCtx(c.ctx)
	c.Logger().Info("client connected", zap.Bool("newSession", created))
	return sess, nil
}

func (c *conn) reject(err error) {
	var (
		reason string
		stage  = network.StageAdmission
	)
	switch {
	case errors.Is(err, merr.ErrParameterInvalid), errors.Is(err, merr.ErrParameterMissing):
		reason, stage = metrics.RejectReasonInvalidID, network.StageHandshake
	case errors.Is(err, merr.ErrSessionLimitExceeded):
		reason = metrics.RejectReasonLimit
	default:
		reason = metrics.RejectReasonDevice
	}
	metrics.SessionRejected.WithLabelValues(reason).Inc()
	c.Logger().Warn("connection rejected",
		network.FieldStage(stage),
		zap.String("reason", reason),
		zap.Int32("code", merr.Code(err)),
		zap.Error(err))

	if reply, ok := codec.ReplyForError(err); ok {
		if sendErr := c.Send(reply); sendErr != nil {
			c.Logger().Debug("failed to send rejection", zap.Error(sendErr))
		}
	}
	c.close(err)
}

// loop 处理 Active 状态，是每个连接唯一的阻塞点。
func (c *conn) loop() error {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil
			}
			return network.Classify(err, network.ErrRecvFailed)
		}
		if mt != websocket.TextMessage {
			c.Logger().WithRateGroup("acceptor.binary", 1, 30).RatedInfo(1, "ignore non-text message", zap.Int("type", mt))
			continue
		}

		msg, err := c.acceptor.cfg.Codec.Decode(data)
		if err != nil {
			metrics.MessagesTotal.WithLabelValues("invalid").Inc()
			c.Logger().WithRateGroup("acceptor.decode", 1, 30).RatedWarn(1, "ignore undecodable message",
				network.FieldStage(network.StageDecode),
				zap.Int("size", len(data)),
				zap.Error(err))
			continue
		}
		metrics.MessagesTotal.WithLabelValues(string(msg.Kind)).Inc()

		err = c.acceptor.cfg.Router.Handle(c.ctx, c, c.sess, msg)
		switch {
		case err == nil:
		case errors.Is(err, merr.ErrSessionExpired):
			c.Logger().Info("session expired while connected", network.FieldStage(network.StageDispatch))
			if reply, ok := codec.ReplyForError(err); ok {
				_ = c.Send(reply)
			}
			return err
		case errors.Is(err, network.ErrSendFailed):
			return err
		default:
			c.Logger().WithRateGroup("acceptor.dispatch", 1, 30).RatedWarn(1, "failed to handle message",
				network.FieldStage(network.StageDispatch),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err))
		}
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) || errors.Is(err, net.ErrClosed)
}

// Send 实现 router.Sender，写出一条回复。
func (c *conn) Send(v any) error {
	data, err := c.acceptor.cfg.Codec.Encode(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout := c.acceptor.cfg.WriteTimeout; timeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return network.Classify(errors.Wrap(err, "write reply"), network.ErrSendFailed)
	}
	return nil
}

// close 进入 Closed 并关闭底层连接，可重复调用。
func (c *conn) close(cause error) {
	c.closeOnce.Do(func() {
		_ = c.transit(StateClosed)

		code := websocket.CloseNormalClosure
		switch {
		case errors.Is(cause, network.ErrClosed):
			code = websocket.CloseGoingAway
		case errors.Is(cause, merr.ErrParameterInvalid),
			errors.Is(cause, merr.ErrParameterMissing),
			errors.Is(cause, merr.ErrSessionLimitExceeded):
			code = websocket.ClosePolicyViolation
		case cause != nil && !errors.Is(cause, network.ErrRecvFailed) && !errors.Is(cause, network.ErrSendFailed):
			code = websocket.CloseInternalServerErr
		}
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(closeGracePeriod))
		_ = c.ws.Close()

		c.Logger().Info("connection closed", zap.Error(cause))
	})
}
