package connector

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	network "github.com/ItzDerock/virtual-gamepads/internal/network"
	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	SendQueueSize int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// IdentityParam 为携带客户端标识的查询参数名。
	IdentityParam string

	// Codec 为当前连接使用的编解码器。
	Codec codec.Codec
}

func defaultConfig() Config {
	return Config{
		SendQueueSize: 64,
		WriteTimeout:  5 * time.Second,
		IdentityParam: "client_id",
	}
}

// ClientConn 抽象了客户端侧的一条手柄连接。
type ClientConn interface {
	Context() context.Context
	Identity() uuid.UUID
	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	Ping() error
	Button(code uint16, value int32) error
	Axis(code uint16, value int32) error

	Close() error
}

// ConnectorHandler 描述客户端在各阶段的回调能力。
//
// 回调在连接的收/发协程中执行，应避免阻塞。
type ConnectorHandler interface {
	OnConnected(conn ClientConn)
	OnReply(conn ClientConn, reply *codec.Reply)
	OnClosed(conn ClientConn, err error)
	OnError(conn ClientConn, stage network.Stage, err error)
}

// Connector 抽象了客户端的拨号器。
type Connector interface {
	Dial(ctx context.Context, serverURL string, identity uuid.UUID, h ConnectorHandler) (ClientConn, error)
}

// wsConnector 是基于 gorilla/websocket 的默认 Connector 实现。
type wsConnector struct {
	cfg    Config
	dialer *websocket.Dialer
}

// NewWSConnector 创建一个基于 WebSocket 的 Connector。
func NewWSConnector(cfg Config) (Connector, error) {
	def := defaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.IdentityParam == "" {
		cfg.IdentityParam = def.IdentityParam
	}
	if cfg.Codec == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	return &wsConnector{cfg: cfg, dialer: websocket.DefaultDialer}, nil
}

// Dial 连接到 serverURL（例如 ws://127.0.0.1:3000/ws），并附带 identity 查询参数。
func (c *wsConnector) Dial(ctx context.Context, serverURL string, identity uuid.UUID, h ConnectorHandler) (ClientConn, error) {
	if h == nil {
		return nil, merr.WrapErrParameterMissing("handler")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("invalid server url %q: %v", serverURL, err)
	}
	q := u.Query()
	q.Set(c.cfg.IdentityParam, identity.String())
	u.RawQuery = q.Encode()

	ws, resp, err := c.dialer.DialContext(ctx, u.String(), http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, network.Classify(errors.Wrapf(err, "dial %s", u.Redacted()), network.ErrHandshakeFailed)
	}

	connCtx, cancel := context.WithCancel(ctx)
	cc := newWSClientConn(connCtx, cancel, ws, identity, c.cfg, h)
	h.OnConnected(cc)
	cc.start()
	return cc, nil
}

// wsClientConn 是基于 WebSocket 的 ClientConn 默认实现。
type wsClientConn struct {
	conn     *websocket.Conn
	identity uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc

	cfg   Config
	h     ConnectorHandler
	codec codec.Codec

	sendChan chan codec.Request

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newWSClientConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	identity uuid.UUID,
	cfg Config,
	h ConnectorHandler,
) *wsClientConn {
	return &wsClientConn{
		conn:     conn,
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		h:        h,
		codec:    cfg.Codec,
		sendChan: make(chan codec.Request, cfg.SendQueueSize),
	}
}

func (c *wsClientConn) start() {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.recvLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.sendLoop()
	}()
}

// ClientConn 接口实现。

func (c *wsClientConn) Context() context.Context { return c.ctx }
func (c *wsClientConn) Identity() uuid.UUID      { return c.identity }
func (c *wsClientConn) RemoteAddr() net.Addr     { return c.conn.RemoteAddr() }
func (c *wsClientConn) LocalAddr() net.Addr      { return c.conn.LocalAddr() }

func (c *wsClientConn) Ping() error {
	return c.enqueue(codec.PingRequest())
}

func (c *wsClientConn) Button(code uint16, value int32) error {
	return c.enqueue(codec.ButtonRequest(code, value))
}

func (c *wsClientConn) Axis(code uint16, value int32) error {
	return c.enqueue(codec.AxisRequest(code, value))
}

// Close 发送关闭帧并等待收发协程退出，不能在 ConnectorHandler 回调中调用。
func (c *wsClientConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.close(nil)
	c.wg.Wait()
	return nil
}

func (c *wsClientConn) enqueue(req codec.Request) error {
	if err := c.ctx.Err(); err != nil {
		return network.Classify(err, network.ErrClosed)
	}
	select {
	case <-c.ctx.Done():
		return network.Classify(c.ctx.Err(), network.ErrClosed)
	case c.sendChan <- req:
		return nil
	}
}

func (c *wsClientConn) close(cause error) {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
		c.h.OnClosed(c, cause)
	})
}

// recvLoop 持续读取服务器回复；错误回复之后服务器会关闭连接。
func (c *wsClientConn) recvLoop() {
	for {
		if c.cfg.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.close(nil)
				return
			}
			c.h.OnError(c, network.StageRecv, err)
			c.close(network.Classify(err, network.ErrRecvFailed))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, err := c.codec.DecodeReply(data)
		if err != nil {
			c.h.OnError(c, network.StageDecode, err)
			continue
		}
		c.h.OnReply(c, reply)
	}
}

// sendLoop 从 sendChan 读取请求，编码后写入 WebSocket。
func (c *wsClientConn) sendLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.sendChan:
			data, err := c.codec.Encode(req)
			if err != nil {
				c.h.OnError(c, network.StageSend, err)
				continue
			}
			if c.cfg.WriteTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.h.OnError(c, network.StageSend, err)
				c.close(network.Classify(err, network.ErrSendFailed))
				return
			}
		}
	}
}
