package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/metrics"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/conc"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

var timeNow = time.Now

const defaultTeardownWorkers = 4

// Reaper 周期性回收心跳超时的会话。
//
// 每次 tick 调用 SessionManager.RemoveIf，谓词为“距上次心跳 >= timeout”。
// 会话锁被占用时视为活跃，留到下一轮再判断：宁可晚回收，也不回收正在使用的会话。
// 被回收会话的设备在 teardown 池中异步销毁，不阻塞扫描。
type Reaper struct {
	manager  SessionManager
	timeout  time.Duration
	interval time.Duration
	clock    Clock

	teardown *conc.Pool[struct{}]

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReaper 创建一个 Reaper，需调用 Start 或 Run 才会开始扫描。
func NewReaper(manager SessionManager, cfg Config, clock Clock) (*Reaper, error) {
	if manager == nil {
		return nil, merr.WrapErrParameterMissing("manager")
	}
	if cfg.HeartbeatTimeout <= 0 || cfg.CheckInterval <= 0 {
		return nil, merr.WrapErrParameterInvalidMsg("heartbeat_timeout and check_interval must be positive, got %s/%s",
			cfg.HeartbeatTimeout, cfg.CheckInterval)
	}
	if clock == nil {
		clock = timeNow
	}
	return &Reaper{
		manager:  manager,
		timeout:  cfg.HeartbeatTimeout,
		interval: cfg.CheckInterval,
		clock:    clock,
		teardown: conc.NewPool[struct{}](defaultTeardownWorkers,
			conc.WithName("session-teardown"), conc.WithConcealPanic(true)),
		done: make(chan struct{}),
	}, nil
}

// Start 在后台启动扫描协程，多次调用只生效一次。
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go func() {
			_ = r.Run(ctx)
		}()
	})
}

// Stop 停止后台扫描并释放 teardown 池。
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		if r.running.Load() {
			<-r.done
		}
		r.teardown.Release()
	})
}

// Run 阻塞执行扫描，直到 ctx 结束。
// 同一个 Reaper 只能运行一次，重复调用（包括 Start 之后）返回 ErrServiceInternal。
func (r *Reaper) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return merr.WrapErrServiceInternal("reaper already running")
	}
	defer close(r.done)

	logger := log.Ctx(ctx).With(log.FieldComponent("reaper"))
	logger.Info("reaper started",
		zap.Duration("timeout", r.timeout),
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reaper stopped")
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep 执行一轮扫描，返回被提交销毁的设备对应的 Future。
func (r *Reaper) Sweep() []*conc.Future[struct{}] {
	now := r.clock()
	removed := r.manager.RemoveIf(func(sess *Session) bool {
		return sess.stale(now, r.timeout)
	})
	if len(removed) == 0 {
		return nil
	}

	metrics.SessionEvicted.Add(float64(len(removed)))
	futures := make([]*conc.Future[struct{}], 0, len(removed))
	for _, sess := range removed {
		log.Info("session expired",
			log.FieldComponent("reaper"),
			log.FieldClientID(sess.identity),
			log.FieldDevice(sess.DeviceSerial()),
			zap.Duration("idle", now.Sub(sess.lastHeartbeat)))
		futures = append(futures, r.destroy(sess))
	}
	return futures
}

func (r *Reaper) destroy(sess *Session) *conc.Future[struct{}] {
	return r.teardown.Submit(func() (struct{}, error) {
		if err := sess.closeDevice(); err != nil {
			metrics.DeviceErrors.WithLabelValues("close").Inc()
			log.Warn("failed to destroy virtual device",
				log.FieldClientID(sess.identity),
				log.FieldDevice(sess.DeviceSerial()),
				zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
}

// CloseAll 移除并同步销毁全部会话，用于进程退出。
func (r *Reaper) CloseAll() error {
	removed := r.manager.Drain()
	futures := make([]*conc.Future[struct{}], 0, len(removed))
	for _, sess := range removed {
		futures = append(futures, r.destroy(sess))
	}
	return conc.AwaitAll(futures...)
}
