package acceptor

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/ItzDerock/virtual-gamepads/internal/network"
	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/typeutil"
)

// BaseAcceptor 是 Acceptor 接口的基础实现。
//
// 设计目标：
//   - 每个连接在自己的 ServeHTTP 协程中串行处理消息，保证同一连接上的消息按到达顺序处理；
//   - 连接只持有会话锁，不持有注册表锁，Reaper 扫描不会被单个连接阻塞；
//   - 连接关闭不会移除会话，会话只由 Reaper 回收。
type BaseAcceptor struct {
	cfg      Config
	upgrader *websocket.Upgrader

	mu     sync.Mutex
	conns  typeutil.Set[*conn]
	closed atomic.Bool
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 创建一个接入器，cfg 中的零值字段使用默认配置。
func NewBaseAcceptor(cfg Config) (*BaseAcceptor, error) {
	if cfg.Codec == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	if cfg.Router == nil {
		return nil, merr.WrapErrParameterMissing("router")
	}
	if cfg.Sessions == nil {
		return nil, merr.WrapErrParameterMissing("sessions")
	}

	def := defaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.IdentityParam == "" {
		cfg.IdentityParam = def.IdentityParam
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.WriteTimeout < 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	upgrader := cfg.Upgrader
	if upgrader == nil {
		upgrader = defaultUpgrader()
	}

	return &BaseAcceptor{
		cfg:      cfg,
		upgrader: upgrader,
		conns:    typeutil.NewSet[*conn](),
	}, nil
}

// Path 实现 Acceptor.Path。
func (a *BaseAcceptor) Path() string {
	return a.cfg.Path
}

// ServeHTTP 完成升级并阻塞处理该连接，直到连接进入 Closed。
func (a *BaseAcceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.closed.Load() {
		http.Error(w, merr.WrapErrServiceUnavailable("acceptor closed").Error(), http.StatusServiceUnavailable)
		return
	}

	// 标识在升级后校验，以便通过 WebSocket 返回错误消息。
	rawID := r.URL.Query().Get(a.cfg.IdentityParam)

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 失败时已写出 HTTP 错误响应。
		log.RatedWarn(1, "websocket upgrade failed",
			network.FieldStage(network.StageHandshake),
			log.FieldRemote(r.RemoteAddr),
			zap.Error(network.Classify(err, network.ErrHandshakeFailed)))
		return
	}
	ws.SetReadLimit(a.cfg.ReadLimit)

	ctx, span := log.NewIntentContext(r.Context(), "gamepad", "connection")
	defer span.End()
	ctx = log.WithFields(ctx, log.FieldRemote(r.RemoteAddr))

	c := newConn(ctx, a, ws)
	if !a.track(c) {
		c.close(network.ErrClosed)
		return
	}
	defer a.untrack(c)

	c.serve(rawID)
}

func (a *BaseAcceptor) track(c *conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return false
	}
	a.conns.Insert(c)
	return true
}

func (a *BaseAcceptor) untrack(c *conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns.Remove(c)
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	conns := a.conns.Collect()
	a.mu.Unlock()

	for _, c := range conns {
		c.close(network.ErrClosed)
	}
	log.Info("acceptor closed", zap.Int("connections", len(conns)))
	return nil
}

// Connections 实现 Acceptor.Connections。
func (a *BaseAcceptor) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns.Len()
}
