package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Config 描述会话注册表与 Reaper 的参数。
type Config struct {
	// MaxSessions 为同时跟踪的客户端标识上限。
	MaxSessions int `mapstructure:"max_sessions"`
	// HeartbeatTimeout 为心跳超时阈值。
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	// CheckInterval 为 Reaper 的扫描周期。
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// DefaultConfig 返回默认会话配置。
func DefaultConfig() Config {
	return Config{
		MaxSessions:      15,
		HeartbeatTimeout: 300 * time.Second,
		CheckInterval:    60 * time.Second,
	}
}

// SessionManager 维护客户端标识到 Session 的映射。
//
// 职责说明：
//   - GetOrCreate 对同一标识是原子的：并发调用只会创建一个设备；
//   - 容量只在新建时检查，复用已有标识不占用额外名额；
//   - RemoveIf 不会等待被占用的会话，锁被占用的会话在本轮保留；
//   - 连接关闭不会移除会话，移除只发生在 RemoveIf/Drain 中。
type SessionManager interface {
	// GetOrCreate 返回 identity 对应的会话，不存在时创建。
	//
	// 返回：
	//   - created 为 true 表示本次调用新建了会话；
	//   - 容量已满时返回 ErrSessionLimitExceeded；
	//   - 设备创建失败时返回 ErrDeviceCreateFailed，且不会留下任何条目。
	GetOrCreate(ctx context.Context, identity uuid.UUID) (sess *Session, created bool, err error)

	// Get 根据标识查找会话。
	Get(identity uuid.UUID) (sess *Session, ok bool)

	// RemoveIf 移除所有满足 pred 的会话并返回它们。
	//
	// pred 在持有会话锁的情况下被调用；被移除的会话会被标记为 evicted。
	RemoveIf(pred func(sess *Session) bool) []*Session

	// Drain 移除全部会话，必要时等待会话锁，用于进程退出。
	Drain() []*Session

	// Range 遍历当前所有会话；fn 返回 false 时中断。
	Range(fn func(sess *Session) bool)

	// Count 返回当前会话数量。
	Count() int
}
