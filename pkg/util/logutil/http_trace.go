package logutil

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ItzDerock/virtual-gamepads/pkg/log"
)

const (
	clientRequestIDHeader       = "X-Client-Request-Id"
	clientRequestIDHeaderLegacy = "Client-Request-Id"
	clientRequestMsecHeader     = "X-Client-Request-Msec"

	clientRequestIDKey = "client_request_id"
)

// TraceLoggerMiddleware 在请求上下文中注入带 Trace 信息的 Logger，
// 下游通过 log.Ctx(r.Context()) 即可拿到带 traceID 的 Logger。
func TraceLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestTrace(r.Context(), r.Header)))
	})
}

// WithRequestTrace 根据请求头为 ctx 附加 traceID 等日志字段。
func WithRequestTrace(ctx context.Context, header http.Header) context.Context {
	newctx := ctx
	var traceID trace.TraceID

	if requestID := firstHeader(header, clientRequestIDHeader, clientRequestIDHeaderLegacy); requestID != "" {
		var err error
		// 合法的 TraceID 直接沿用，否则作为普通字段记录。
		traceID, err = trace.TraceIDFromHex(requestID)
		if err != nil {
			newctx = log.WithFields(newctx, zap.String(clientRequestIDKey, requestID))
		}
	}

	if msec, ok := ClientRequestUnixmsec(header); ok {
		newctx = log.WithFields(newctx, zap.Int64("clientRequestUnixmsec", msec))
	}

	if !traceID.IsValid() {
		traceID = trace.SpanContextFromContext(newctx).TraceID()
	}
	if traceID.IsValid() {
		newctx = log.WithTraceID(newctx, traceID.String())
	}
	return newctx
}

// ClientRequestUnixmsec 解析客户端请求时间戳（毫秒）。
func ClientRequestUnixmsec(header http.Header) (int64, bool) {
	raw := header.Get(clientRequestMsecHeader)
	if raw == "" {
		return -1, false
	}
	msec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1, false
	}
	return msec, true
}

func firstHeader(header http.Header, keys ...string) string {
	for _, key := range keys {
		if v := header.Get(key); v != "" {
			return v
		}
	}
	return ""
}
