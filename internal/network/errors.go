package network

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Stage 表示连接处理链路中的阶段。
//
// 主要用于在日志中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageHandshake Stage = "handshake" // WebSocket 升级与客户端标识校验
	StageAdmission Stage = "admission" // 注册表准入（容量/设备创建）
	StageRecv      Stage = "recv"      // 读取一条 WebSocket 消息
	StageDecode    Stage = "decode"    // 原始字节 -> Message
	StageDispatch  Stage = "dispatch"  // Message -> 会话操作
	StageSend      Stage = "send"      // 写出回复
)

// FieldStage 返回阶段日志字段。
func FieldStage(stage Stage) zap.Field {
	return zap.String("stage", string(stage))
}

// 统一的错误码常量。
//
// 注意：这些是用于日志/监控的稳定字符串，真正的 error 对象在下面构造。
const (
	ErrCodeHandshakeFailed = "network:handshake_failed"
	ErrCodeRecvFailed      = "network:recv_failed"
	ErrCodeSendFailed      = "network:send_failed"
	ErrCodeClosed          = "network:closed"
)

var (
	// ErrHandshakeFailed 表示握手阶段失败（例如 WebSocket 升级失败）。
	ErrHandshakeFailed = errors.New(ErrCodeHandshakeFailed)

	// ErrRecvFailed 表示在读取底层连接数据时发生错误。
	ErrRecvFailed = errors.New(ErrCodeRecvFailed)

	// ErrSendFailed 表示在发送数据到对端时发生错误。
	ErrSendFailed = errors.New(ErrCodeSendFailed)

	// ErrClosed 表示接入层已关闭。
	ErrClosed = errors.New(ErrCodeClosed)
)

// Classify 将 cause 归入 kind 类别。
// kind 位于包装链上，标准库与 cockroachdb 的 errors.Is 都能识别；
// cause 作为次要错误保留，只用于日志详情。
func Classify(cause, kind error) error {
	if cause == nil {
		return kind
	}
	return errors.WithSecondaryError(errors.Wrap(kind, cause.Error()), cause)
}
