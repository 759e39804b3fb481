package session

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/metrics"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

const defaultShardCount = 16

type shard struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// BaseSessionManager 提供了分片 map 实现的 SessionManager。
//
// 特性：
//   - 按标识哈希分片，不同分片上的查找/插入互不竞争；
//   - 设备创建在分片锁内完成，同一标识只会构造一个设备；
//   - 容量通过原子计数预占，设备创建失败时归还名额；
//   - 加锁顺序固定为 分片锁 -> 会话锁，连接处理路径从不持有分片锁。
type BaseSessionManager struct {
	factory     device.Factory
	maxSessions int
	clock       Clock

	shards []*shard
	size   atomic.Int64
}

// 确保 BaseSessionManager 实现了 SessionManager 接口。
var _ SessionManager = (*BaseSessionManager)(nil)

// Option 配置 BaseSessionManager。
type Option func(m *BaseSessionManager)

// WithClock 替换时间源。
func WithClock(clock Clock) Option {
	return func(m *BaseSessionManager) {
		m.clock = clock
	}
}

// WithShardCount 设置分片数量，n <= 0 时忽略。
func WithShardCount(n int) Option {
	return func(m *BaseSessionManager) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[uuid.UUID]*Session)}
	}
	return shards
}

// NewBaseSessionManager 创建一个空的注册表。
func NewBaseSessionManager(factory device.Factory, maxSessions int, opts ...Option) (*BaseSessionManager, error) {
	if factory == nil {
		return nil, merr.WrapErrParameterMissing("factory")
	}
	if maxSessions <= 0 {
		return nil, merr.WrapErrParameterInvalidMsg("max_sessions must be positive, got %d", maxSessions)
	}
	m := &BaseSessionManager{
		factory:     factory,
		maxSessions: maxSessions,
		clock:       timeNow,
		shards:      newShards(defaultShardCount),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *BaseSessionManager) shardFor(identity uuid.UUID) *shard {
	h := binary.LittleEndian.Uint64(identity[8:]) ^ binary.LittleEndian.Uint64(identity[:8])
	return m.shards[h%uint64(len(m.shards))]
}

// reserve 预占一个名额，已满时返回 false。
func (m *BaseSessionManager) reserve() bool {
	for {
		cur := m.size.Load()
		if cur >= int64(m.maxSessions) {
			return false
		}
		if m.size.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// GetOrCreate 实现 SessionManager.GetOrCreate。
func (m *BaseSessionManager) GetOrCreate(ctx context.Context, identity uuid.UUID) (*Session, bool, error) {
	sh := m.shardFor(identity)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sess, ok := sh.sessions[identity]; ok {
		return sess, false, nil
	}

	if !m.reserve() {
		return nil, false, merr.WrapErrSessionLimitExceeded(m.maxSessions)
	}

	dev, err := m.factory.Create(ctx, identity)
	if err != nil {
		m.size.Dec()
		if !errors.Is(err, merr.ErrDeviceCreateFailed) {
			err = merr.WrapErrDeviceCreateFailed(identity, err)
		}
		return nil, false, err
	}

	sess := newSession(identity, dev, m.clock)
	sh.sessions[identity] = sess

	metrics.SessionCreated.Inc()
	metrics.SessionActive.Inc()
	log.Ctx(ctx).Info("session created",
		log.FieldClientID(identity),
		log.FieldDevice(dev.Serial()))
	return sess, true, nil
}

// Get 实现 SessionManager.Get。
func (m *BaseSessionManager) Get(identity uuid.UUID) (*Session, bool) {
	sh := m.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[identity]
	return sess, ok
}

// RemoveIf 实现 SessionManager.RemoveIf。
func (m *BaseSessionManager) RemoveIf(pred func(sess *Session) bool) []*Session {
	if pred == nil {
		return nil
	}
	var removed []*Session
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			// 正在处理消息的会话本轮保留，不等待。
			if !sess.mu.TryLock() {
				continue
			}
			if pred(sess) {
				sess.evicted = true
				delete(sh.sessions, id)
				removed = append(removed, sess)
			}
			sess.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	m.forget(len(removed))
	return removed
}

// Drain 实现 SessionManager.Drain。
func (m *BaseSessionManager) Drain() []*Session {
	var removed []*Session
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			sess.mu.Lock()
			sess.evicted = true
			sess.mu.Unlock()
			delete(sh.sessions, id)
			removed = append(removed, sess)
		}
		sh.mu.Unlock()
	}
	m.forget(len(removed))
	return removed
}

func (m *BaseSessionManager) forget(n int) {
	if n == 0 {
		return
	}
	m.size.Sub(int64(n))
	metrics.SessionActive.Sub(float64(n))
}

// Range 实现 SessionManager.Range。
func (m *BaseSessionManager) Range(fn func(sess *Session) bool) {
	if fn == nil {
		return
	}

	snapshot := make([]*Session, 0, m.Count())
	for _, sh := range m.shards {
		sh.mu.Lock()
		for _, sess := range sh.sessions {
			snapshot = append(snapshot, sess)
		}
		sh.mu.Unlock()
	}

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}

// Count 实现 SessionManager.Count。
func (m *BaseSessionManager) Count() int {
	return int(m.size.Load())
}
