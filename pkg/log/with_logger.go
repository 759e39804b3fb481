package log

import (
	"context"

	"go.uber.org/atomic"
)

// Binder 嵌入到长生命周期的组件中，保存该组件专属的 Logger。
// 零值可用，未绑定时退回到全局 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 替换当前绑定的 Logger，可与 Logger 并发调用。
func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// BindCtx 绑定 ctx 上携带的 Logger，随后输出的日志都带有 ctx 中的字段。
func (b *Binder) BindCtx(ctx context.Context) {
	b.logger.Store(Ctx(ctx))
}

// Logger 返回当前绑定的 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
