package acceptor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/router"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
)

// Config 描述 Acceptor 的配置。
//
// 说明：
//   - Path 控制 WebSocket 的升级路径（如 "/ws"）；
//   - IdentityParam 为携带客户端标识的查询参数名；
//   - ReadLimit 限制单条入站消息的字节数，超出时连接被关闭；
//   - WriteTimeout 控制单次写出的超时时间（为 0 表示不设置 deadline）。
type Config struct {
	Path          string
	IdentityParam string

	ReadLimit    int64
	WriteTimeout time.Duration

	// Upgrader 允许调用方自定义 gorilla/websocket 的升级行为。
	// 若为 nil，则使用内部默认的 Upgrader。
	Upgrader *websocket.Upgrader

	// Codec 负责入站消息的解码与出站消息的编码。
	Codec codec.Codec

	// Router 负责 Active 状态下的消息分发。
	Router router.Router

	// Sessions 为客户端标识到会话的注册表。
	Sessions session.SessionManager
}

// 默认配置。
func defaultConfig() Config {
	return Config{
		Path:          "/ws",
		IdentityParam: "client_id",
		ReadLimit:     4096,
		WriteTimeout:  5 * time.Second,
	}
}

func defaultUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 前端可能由其它来源托管，不做同源校验。
		CheckOrigin: func(*http.Request) bool { return true },
	}
}

// Acceptor 抽象了服务器侧的 WebSocket 接入层。
//
// 职责：
//   - 作为 http.Handler 处理 WebSocket 升级；
//   - 为每个连接驱动 Connecting -> Active -> Closed 状态机；
//   - 跟踪活跃连接，Close 时统一断开。
type Acceptor interface {
	http.Handler

	// Path 返回 WebSocket 升级路径。
	Path() string

	// Close 拒绝新连接并断开所有现有连接。会话本身保留在注册表中。
	Close() error

	// Connections 返回当前连接数。
	Connections() int
}
